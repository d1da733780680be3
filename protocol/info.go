package protocol

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrBadInfo = errors.New("INFO is malformed, expected a JSON object")
)

// ServerInfo holds the INFO fields this client cares about.
type ServerInfo struct {
	ServerID     string
	ServerName   string
	Version      string
	Proto        int
	Host         string
	Port         int
	MaxPayload   int64
	Headers      bool
	AuthRequired bool
	TLSRequired  bool
	ClientID     uint64
	Nonce        string
}

// DecodeInfo reads the JSON argument of an INFO operation.
func DecodeInfo(data []byte) (ServerInfo, error) {
	if !gjson.ValidBytes(data) {
		return ServerInfo{}, fmt.Errorf("Failed to decode INFO '%s': %w", data, ErrBadInfo)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return ServerInfo{}, fmt.Errorf("Failed to decode INFO '%s': %w", data, ErrBadInfo)
	}

	return ServerInfo{
		ServerID:     doc.Get("server_id").String(),
		ServerName:   doc.Get("server_name").String(),
		Version:      doc.Get("version").String(),
		Proto:        int(doc.Get("proto").Int()),
		Host:         doc.Get("host").String(),
		Port:         int(doc.Get("port").Int()),
		MaxPayload:   doc.Get("max_payload").Int(),
		Headers:      doc.Get("headers").Bool(),
		AuthRequired: doc.Get("auth_required").Bool(),
		TLSRequired:  doc.Get("tls_required").Bool(),
		ClientID:     doc.Get("client_id").Uint(),
		Nonce:        doc.Get("nonce").String(),
	}, nil
}

// ConnectOptions are the fields sent in CONNECT.
type ConnectOptions struct {
	Verbose  bool
	Pedantic bool
	Echo     bool

	Name    string
	Lang    string
	Version string

	// Protocol 1 asks the server for async INFO updates
	Protocol int

	User  string
	Pass  string
	Token string
}

// EncodeConnect builds the JSON argument of CONNECT. Credentials are only included
// when they are set.
func EncodeConnect(opts ConnectOptions) ([]byte, error) {
	fields := []struct {
		path  string
		value interface{}
		omit  bool
	}{
		{"verbose", opts.Verbose, false},
		{"pedantic", opts.Pedantic, false},
		{"tls_required", false, false},
		{"name", opts.Name, opts.Name == ""},
		{"lang", opts.Lang, opts.Lang == ""},
		{"version", opts.Version, opts.Version == ""},
		{"protocol", opts.Protocol, false},
		{"echo", opts.Echo, false},
		{"headers", false, false},
		{"user", opts.User, opts.User == ""},
		{"pass", opts.Pass, opts.Pass == ""},
		{"auth_token", opts.Token, opts.Token == ""},
	}

	var (
		doc = []byte("{}")
		err error
	)

	for _, f := range fields {
		if f.omit {
			continue
		}

		if doc, err = sjson.SetBytes(doc, f.path, f.value); err != nil {
			return nil, fmt.Errorf("Failed to encode CONNECT field '%s': %w", f.path, err)
		}
	}

	return doc, nil
}
