// Security directory decoder, spec.md §4.H: "the 'RVA' is actually a
// file offset. Array of WIN_CERTIFICATE {length, revision, type,
// data[length-8]}, each padded to 8-byte alignment. Type 2 = PKCS#7
// SignedData (Authenticode)."
//
// The Authenticode PKCS#7 blob is parsed for introspection only (spec.md
// §6: "parsed for introspection only; no verification"), per
// SPEC_FULL.md's supplemented Authenticode section, which mirrors
// original_source/include/libexe/pe/authenticode.hpp's shape (digest
// algorithm, signer issuer/serial, certificate chain) without
// reimplementing its hand-rolled ASN.1 walk - go.mozilla.org/pkcs7 (the
// library the saferwall-pe manifest in the retrieval pack already
// depends on for this exact purpose) does the SignedData parsing, and
// this file only reshapes its result into Authenticode/AuthenticodeSigner.
// No surviving original_source file documents WIN_CERTIFICATE itself;
// its layout is the standard documented shape.
package pefile

import (
	"crypto/x509"
	"math/big"

	"go.mozilla.org/pkcs7"

	"github.com/provide-io/xbin/pkg/xbin/diag"
)

const maxSecurityCertificates = 1000

// CertificateType mirrors WIN_CERT_TYPE_*.
type CertificateType uint16

const (
	CertTypeX509            CertificateType = 1
	CertTypePKCS7SignedData CertificateType = 2
	CertTypeReserved1       CertificateType = 3
	CertTypePKCS1Sign       CertificateType = 9
)

// AuthenticodeSigner is one PKCS#7 SignerInfo entry: who signed, and
// with what digest algorithm, without validating the signature itself.
type AuthenticodeSigner struct {
	Issuer             string
	SerialNumber       string
	DigestAlgorithmOID string
}

// Authenticode is the introspected content of a PKCS#7 SignedData blob
// attached as Authenticode. It never performs signature verification or
// certificate-chain validation.
type Authenticode struct {
	Parsed       bool
	Signers      []AuthenticodeSigner
	Certificates []*x509.Certificate
}

// Certificate is one WIN_CERTIFICATE entry.
type Certificate struct {
	Length       uint32
	Revision     uint16
	Type         CertificateType
	Data         []byte
	Authenticode *Authenticode
}

// SecurityDirectory is every certificate attached to the image.
type SecurityDirectory struct {
	Certificates []Certificate
}

// DecodeSecurity decodes the Security data directory. Unlike every other
// directory, dd.RVA here is a raw file offset, not an RVA, so this
// decoder never touches the section resolver.
func (f *File) DecodeSecurity(diags *diag.Collector) (*SecurityDirectory, error) {
	dd := f.DataDirectory(DirSecurity)
	dir := &SecurityDirectory{}
	if dd.RVA == 0 || dd.Size == 0 {
		return dir, nil
	}

	offset := int64(dd.RVA)
	end := offset + int64(dd.Size)
	for i := 0; i < maxSecurityCertificates && offset < end; i++ {
		hdr, err := f.src.Slice(offset, 8)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Security, "SEC_CERT_HEADER_TRUNCATED", offset, 0,
				"WIN_CERTIFICATE header truncated: %v", err)
			break
		}
		length := u32(hdr, 0)
		revision := u16(hdr, 4)
		certType := u16(hdr, 6)
		if length < 8 {
			diags.Addf(diag.Error, diag.Security, "SEC_CERT_LENGTH_INVALID", offset, 0,
				"WIN_CERTIFICATE length %d smaller than its 8-byte header", length)
			break
		}
		data, err := f.src.Slice(offset+8, int64(length)-8)
		if err != nil {
			diags.Addf(diag.Anomaly, diag.Security, "SEC_CERT_DATA_TRUNCATED", offset, 0,
				"WIN_CERTIFICATE data truncated: %v", err)
			break
		}
		cert := Certificate{Length: length, Revision: revision, Type: CertificateType(certType), Data: data}
		if cert.Type == CertTypePKCS7SignedData {
			cert.Authenticode = decodeAuthenticode(data, diags, offset)
		}
		dir.Certificates = append(dir.Certificates, cert)

		paddedLength := (int64(length) + 7) &^ 7
		offset += paddedLength
	}
	return dir, nil
}

// decodeAuthenticode parses a PKCS#7 SignedData blob for introspection,
// never for signature verification.
func decodeAuthenticode(data []byte, diags *diag.Collector, offset int64) *Authenticode {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		diags.Addf(diag.Anomaly, diag.Security, "SEC_AUTHENTICODE_UNPARSEABLE", offset, 0,
			"PKCS#7 SignedData unparseable: %v", err)
		return &Authenticode{Parsed: false}
	}

	a := &Authenticode{Parsed: true, Certificates: p7.Certificates}
	for _, signer := range p7.Signers {
		s := AuthenticodeSigner{
			DigestAlgorithmOID: signer.DigestAlgorithm.Algorithm.String(),
		}
		if signer.IssuerAndSerialNumber.SerialNumber != nil {
			s.SerialNumber = signer.IssuerAndSerialNumber.SerialNumber.String()
		}
		if cert := findCertBySerial(p7.Certificates, signer.IssuerAndSerialNumber.SerialNumber); cert != nil {
			s.Issuer = cert.Issuer.String()
		}
		a.Signers = append(a.Signers, s)
	}
	return a
}

// findCertBySerial locates the signer's own certificate within the
// SignedData blob's certificate chain, for its Issuer DN.
func findCertBySerial(certs []*x509.Certificate, serial *big.Int) *x509.Certificate {
	if serial == nil {
		return nil
	}
	for _, c := range certs {
		if c.SerialNumber != nil && c.SerialNumber.Cmp(serial) == 0 {
			return c
		}
	}
	return nil
}
