package mqtt

import (
	"errors"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// CONNACK return codes (MQTT 3.1.1 section 3.2.2.3).
const (
	CodeAccepted           byte = 0
	CodeBadProtocolVersion byte = 1
	CodeIdentifierRejected byte = 2
	CodeServerUnavailable  byte = 3
	CodeBadCredentials     byte = 4
	CodeNotAuthorised      byte = 5

	// codeNetworkError is paho's synthetic code for a transport failure
	// before any CONNACK was received.
	codeNetworkError byte = 0xFE
)

var connackReasons = map[byte]string{
	CodeAccepted:           "Connection successful",
	CodeBadProtocolVersion: "Connection refused - incorrect protocol version",
	CodeIdentifierRejected: "Connection refused - invalid client identifier",
	CodeServerUnavailable:  "Connection refused - server unavailable",
	CodeBadCredentials:     "Connection refused - bad username or password",
	CodeNotAuthorised:      "Connection refused - not authorised",
}

// DescribeConnack maps a CONNACK return code to a human-readable reason.
// Codes above 5 are reported as an unknown failure.
func DescribeConnack(code byte) string {
	if reason, ok := connackReasons[code]; ok {
		return reason
	}
	return "Connection refused - unknown failure"
}

// ConnectResult is the outcome of a single connection attempt.
type ConnectResult struct {
	Code   byte
	Reason string

	// Transport is true when no CONNACK arrived (dial failure, timeout).
	Transport bool
}

// Accepted reports whether the broker accepted the connection.
func (r ConnectResult) Accepted() bool {
	return !r.Transport && r.Code == CodeAccepted
}

// Retryable reports whether another attempt could succeed without
// operator intervention. Protocol, identifier and credential refusals are final.
func (r ConnectResult) Retryable() bool {
	return r.Transport || r.Code == CodeServerUnavailable
}

// resultFromToken extracts the CONNACK code from a completed connect token.
func resultFromToken(token pahomqtt.Token) ConnectResult {
	err := token.Error()

	if ct, ok := token.(interface{ ReturnCode() byte }); ok {
		code := ct.ReturnCode()
		if err == nil && code == CodeAccepted {
			return ConnectResult{Code: CodeAccepted, Reason: DescribeConnack(CodeAccepted)}
		}
		if code == codeNetworkError || (code == CodeAccepted && err != nil) {
			return transportResult(err)
		}
		return ConnectResult{Code: code, Reason: DescribeConnack(code)}
	}

	if err == nil {
		return ConnectResult{Code: CodeAccepted, Reason: DescribeConnack(CodeAccepted)}
	}
	for code, connErr := range packets.ConnErrors {
		if code != codeNetworkError && code != CodeAccepted && errors.Is(err, connErr) {
			return ConnectResult{Code: code, Reason: DescribeConnack(code)}
		}
	}
	return transportResult(err)
}

func transportResult(err error) ConnectResult {
	reason := "Connection failed - network error"
	if err != nil {
		reason = "Connection failed - " + err.Error()
	}
	return ConnectResult{Code: codeNetworkError, Reason: reason, Transport: true}
}
