package api

import "testing"

func int64Ptr(i int64) *int64 { return &i }

func validConnectRequest() *ConnectRequest {
	return &ConnectRequest{
		URL:       "https://tools.example/mcp",
		Transport: TransportHTTP,
	}
}

func TestValidateConnectRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name      string
		modify    func(r *ConnectRequest)
		cfg       func(c *ValidationConfig)
		wantErr   bool
		wantParam string
		wantCode  string
	}{
		{
			name:   "valid request accepted",
			modify: func(r *ConnectRequest) {},
		},
		{
			name:   "sse accepted",
			modify: func(r *ConnectRequest) { r.Transport = TransportSSE },
		},
		{
			name:      "missing url rejected",
			modify:    func(r *ConnectRequest) { r.URL = "" },
			wantErr:   true,
			wantParam: "url",
		},
		{
			name:      "relative url rejected",
			modify:    func(r *ConnectRequest) { r.URL = "/mcp" },
			wantErr:   true,
			wantParam: "url",
		},
		{
			name:      "ftp url rejected",
			modify:    func(r *ConnectRequest) { r.URL = "ftp://tools.example/mcp" },
			wantErr:   true,
			wantParam: "url",
		},
		{
			name:      "missing transport rejected",
			modify:    func(r *ConnectRequest) { r.Transport = "" },
			wantErr:   true,
			wantParam: "transport",
		},
		{
			name:      "unknown transport rejected",
			modify:    func(r *ConnectRequest) { r.Transport = "websocket" },
			wantErr:   true,
			wantParam: "transport",
		},
		{
			name: "stdio rejected when disabled",
			modify: func(r *ConnectRequest) {
				r.Transport = TransportStdio
				r.URL = "npx some-server"
			},
			wantErr:   true,
			wantParam: "transport",
			wantCode:  "unsupported_transport",
		},
		{
			name: "stdio accepted when enabled",
			modify: func(r *ConnectRequest) {
				r.Transport = TransportStdio
				r.URL = "npx some-server"
			},
			cfg: func(c *ValidationConfig) { c.AllowStdio = true },
		},
		{
			name:      "invalid header name rejected",
			modify:    func(r *ConnectRequest) { r.Headers = map[string]string{"Bad Header": "x"} },
			wantErr:   true,
			wantParam: "headers",
		},
		{
			name:      "header value with line break rejected",
			modify:    func(r *ConnectRequest) { r.Headers = map[string]string{"X-Trace": "a\nb"} },
			wantErr:   true,
			wantParam: "headers",
		},
		{
			name:      "header value with control byte rejected",
			modify:    func(r *ConnectRequest) { r.Headers = map[string]string{"X-Trace": "a\x00b"} },
			wantErr:   true,
			wantParam: "headers",
		},
		{
			name:   "header value with tab accepted",
			modify: func(r *ConnectRequest) { r.Headers = map[string]string{"X-Trace": "a\tb"} },
		},
		{
			name:      "non-positive server id rejected",
			modify:    func(r *ConnectRequest) { r.ServerID = int64Ptr(0) },
			wantErr:   true,
			wantParam: "server_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validConnectRequest()
			tt.modify(req)
			c := cfg
			if tt.cfg != nil {
				tt.cfg(&c)
			}
			err := ValidateConnectRequest(req, c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if err.Param != tt.wantParam {
					t.Errorf("param = %q, want %q", err.Param, tt.wantParam)
				}
				if tt.wantCode != "" && err.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", err.Code, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateCallToolRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	req := &CallToolRequest{
		URL:       "https://tools.example/mcp",
		Transport: TransportHTTP,
		Tool:      "echo",
		ServerID:  int64Ptr(3),
	}
	if err := ValidateCallToolRequest(req, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req.Tool = "  "
	err := ValidateCallToolRequest(req, cfg)
	if err == nil || err.Param != "tool" {
		t.Fatalf("expected tool error, got %v", err)
	}
}

func TestValidateServerRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name      string
		req       ServerRequest
		wantParam string
	}{
		{
			name: "valid http server",
			req:  ServerRequest{Name: "tools", URL: "https://tools.example/mcp", Transport: TransportHTTP},
		},
		{
			name: "stdio command is not a URL",
			req:  ServerRequest{Name: "local", URL: "uvx mcp-server-time", Transport: TransportStdio},
		},
		{
			name:      "missing name",
			req:       ServerRequest{URL: "https://tools.example/mcp", Transport: TransportHTTP},
			wantParam: "name",
		},
		{
			name:      "unknown transport",
			req:       ServerRequest{Name: "tools", URL: "https://tools.example/mcp", Transport: "grpc"},
			wantParam: "transport",
		},
		{
			name:      "sse requires http url",
			req:       ServerRequest{Name: "tools", URL: "tools.example", Transport: TransportSSE},
			wantParam: "url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerRequest(&tt.req, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for param %q", tt.wantParam)
			}
			if err.Param != tt.wantParam {
				t.Errorf("param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestTransportKindValid(t *testing.T) {
	for _, k := range []TransportKind{TransportStdio, TransportHTTP, TransportSSE} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if TransportKind("streamable").Valid() {
		t.Error("unknown kind should be invalid")
	}
}
