package api

import (
	"crypto/tls"
	"crypto/x509"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"partsledger/internal/logger"
)

// CreateKafkaDialer builds a dialer with optional SASL/PLAIN and TLS, the way
// hosted brokers (Aiven, Confluent) expect it.
func CreateKafkaDialer(username, password, caCert string) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	if username != "" && password != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: username,
			Password: password,
		}
		logger.Log.Info("🔐 Kafka: SASL/PLAIN enabled", zap.String("username", username))
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caCert != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(caCert)) {
			tlsConfig.RootCAs = pool
			logger.Log.Info("🔒 Kafka: TLS with custom CA enabled")
		} else {
			logger.Log.Warn("⚠️ Kafka: cannot parse CA certificate, falling back to system roots")
		}
	}

	// SASL over plaintext is refused by hosted brokers, so it always implies TLS.
	if dialer.SASLMechanism != nil || caCert != "" {
		dialer.TLS = tlsConfig
	}
	return dialer
}

// kafkaTransport mirrors the dialer's security settings for a kafka.Writer.
func kafkaTransport(dialer *kafka.Dialer) *kafka.Transport {
	return &kafka.Transport{
		DialTimeout: dialer.Timeout,
		SASL:        dialer.SASLMechanism,
		TLS:         dialer.TLS,
	}
}

// ParseKafkaBrokers splits a comma separated broker list.
func ParseKafkaBrokers(brokers string) []string {
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
