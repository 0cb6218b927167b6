package main

import (
	"errors"
	"fmt"
	"testing"

	"gv-go/internal/gv"
)

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "forbidden shows the server's reason",
			err:  fmt.Errorf("donating to 1: %w", &gv.Error{Kind: gv.KindForbidden, Status: 403, Message: "only verified users can donate"}),
			want: "only verified users can donate",
		},
		{
			name: "missing token",
			err:  &gv.Error{Kind: gv.KindUnauthenticated, Message: "authentication required"},
			want: "Not logged in. Run 'gv login' first.",
		},
		{
			name: "rejected credentials",
			err:  fmt.Errorf("logging in: %w", &gv.Error{Kind: gv.KindUnauthenticated, Status: 401, Message: "Invalid credentials."}),
			want: "Invalid credentials.",
		},
		{
			name: "expired token without a message",
			err:  &gv.Error{Kind: gv.KindUnauthenticated, Status: 401},
			want: "Not logged in. Run 'gv login' first.",
		},
		{
			name: "validation lists fields in order",
			err: &gv.Error{Kind: gv.KindValidation, Status: 422, Message: "The given data was invalid.", Fields: map[string][]string{
				"title":       {"The title field is required."},
				"goal_amount": {"The goal amount must be at least 1."},
			}},
			want: "Invalid input: The given data was invalid.\n  goal_amount: The goal amount must be at least 1.\n  title: The title field is required.",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "Error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeError(tt.err); got != tt.want {
				t.Errorf("describeError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "42", want: 42},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseID(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
