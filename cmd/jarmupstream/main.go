// Command jarmupstream is a minimal self-signed HTTPS server, adapted
// from example/upstream.go, kept as a second scan target alongside
// cmd/jarmfixture: where the fixture plays back scripted, deterministic
// bytes, jarmupstream runs a genuine crypto/tls.Server handshake, so a
// scan against it exercises the Parser against a real negotiated
// ServerHello instead of a canned one.
//
// Run:
//
//	go run ./cmd/jarmupstream -port 9443
//
// Then:
//
//	go run ./cmd/jarmscan -proxy ignore localhost:9443
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"log"
	"math/big"
	"net/http"
	"time"
)

func main() {
	port := flag.String("port", "9443", "listen port")
	flag.Parse()
	cert, key := mustSelfSignedCert()
	pair, err := tls.X509KeyPair(cert, key)
	if err != nil {
		log.Fatalf("load self-signed pair: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello from jarmupstream\n"))
	})

	srv := &http.Server{
		Addr:      ":" + *port,
		Handler:   mux,
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{pair}},
	}
	log.Printf("[jarmupstream] listening on :%s (self-signed CN=localhost)", *port)
	log.Fatal(srv.ListenAndServeTLS("", ""))
}

func mustSelfSignedCert() (certPEM, keyPEM []byte) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		DNSNames:              []string{"localhost"},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		log.Fatalf("create cert: %v", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return
}
