package gateway

import (
	"strings"
	"testing"
)

func TestSubmitRequestValidation(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr bool
	}{
		{
			name: "valid request",
			req:  SubmitRequest{SenderNumber: "+14155551234", MessageBody: "hello"},
		},
		{
			name: "two digit number is a valid country code",
			req:  SubmitRequest{SenderNumber: "+12", MessageBody: "hello"},
		},
		{
			name: "fifteen digits is the E.164 maximum",
			req:  SubmitRequest{SenderNumber: "+123456789012345", MessageBody: "hello"},
		},
		{
			name:    "sixteen digits exceeds E.164",
			req:     SubmitRequest{SenderNumber: "+1234567890123456", MessageBody: "hello"},
			wantErr: true,
		},
		{
			name:    "single digit after plus",
			req:     SubmitRequest{SenderNumber: "+1", MessageBody: "hello"},
			wantErr: true,
		},
		{
			name:    "leading zero country code",
			req:     SubmitRequest{SenderNumber: "+0123456789", MessageBody: "hello"},
			wantErr: true,
		},
		{
			name:    "missing plus prefix",
			req:     SubmitRequest{SenderNumber: "14155551234", MessageBody: "hello"},
			wantErr: true,
		},
		{
			name:    "letters in number",
			req:     SubmitRequest{SenderNumber: "+1415CALLNOW", MessageBody: "hello"},
			wantErr: true,
		},
		{
			name:    "missing sender",
			req:     SubmitRequest{MessageBody: "hello"},
			wantErr: true,
		},
		{
			name:    "missing body",
			req:     SubmitRequest{SenderNumber: "+14155551234"},
			wantErr: true,
		},
		{
			name:    "whitespace-only body",
			req:     SubmitRequest{SenderNumber: "+14155551234", MessageBody: "   \t  "},
			wantErr: true,
		},
		{
			name:    "newlines-only body",
			req:     SubmitRequest{SenderNumber: "+14155551234", MessageBody: "\n\n"},
			wantErr: true,
		},
		{
			name: "body with surrounding whitespace",
			req:  SubmitRequest{SenderNumber: "+14155551234", MessageBody: "  hello  "},
		},
		{
			name: "body at maximum length",
			req:  SubmitRequest{SenderNumber: "+14155551234", MessageBody: strings.Repeat("a", MaxBodyLength)},
		},
		{
			name:    "body one over maximum",
			req:     SubmitRequest{SenderNumber: "+14155551234", MessageBody: strings.Repeat("a", MaxBodyLength+1)},
			wantErr: true,
		},
		{
			name: "multibyte body counted in runes",
			req:  SubmitRequest{SenderNumber: "+14155551234", MessageBody: strings.Repeat("é", MaxBodyLength)},
		},
		{
			name: "metadata domain within limit",
			req: SubmitRequest{
				SenderNumber: "+14155551234",
				MessageBody:  "hello",
				Metadata:     &SubmitMetadata{Domain: "example.com"},
			},
		},
		{
			name: "metadata domain too long",
			req: SubmitRequest{
				SenderNumber: "+14155551234",
				MessageBody:  "hello",
				Metadata:     &SubmitMetadata{Domain: strings.Repeat("d", 256)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.req)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidationMessage(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name string
		req  SubmitRequest
		want string
	}{
		{
			name: "bad phone number",
			req:  SubmitRequest{SenderNumber: "not-a-number", MessageBody: "hello"},
			want: "sender_number must be a valid E.164 phone number",
		},
		{
			name: "oversized body",
			req:  SubmitRequest{SenderNumber: "+14155551234", MessageBody: strings.Repeat("a", MaxBodyLength+1)},
			want: "message_body exceeds maximum length of 1000 characters",
		},
		{
			name: "missing body",
			req:  SubmitRequest{SenderNumber: "+14155551234"},
			want: "message_body is required",
		},
		{
			name: "blank body",
			req:  SubmitRequest{SenderNumber: "+14155551234", MessageBody: "  \t "},
			want: "message_body cannot be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := validationMessage(err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
