package workflow

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare object", `  {"a":1}  `, `{"a":1}`},
		{"prose around", "Sure! Here is your workflow:\n{\"a\":{\"b\":[1,2]}}\nLet me know if you need more.", `{"a":{"b":[1,2]}}`},
		{"first of two fences", "```json\n{\"a\":1}\n```\nand\n```json\n{\"b\":2}\n```", `{"a":1}`},
		{"tilde fence", "~~~\n{\"a\":1}\n~~~", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"brace in prose first", "Use {curly} braces:\n{\"a\":\"}\"}", `{"a":"}"}`},
		{"bom", "\ufeff{\"a\":1}", `{"a":1}`},
		{"many braces in prose", strings.Repeat("{x} ", 70) + "\n{\"workflow\":{\"steps\":[]}}", `{"workflow":{"steps":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.in)
			if err != nil {
				t.Fatalf("Sanitize(%q): %v", tt.in, err)
			}
			if string(got) != tt.want {
				t.Fatalf("Sanitize(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFailures(t *testing.T) {
	for _, in := range []string{
		"", "   \n", "not json at all", "[1,2,3]", "{\"a\":", "```json\n```",
		"```\nnope\n``` {\"a\":1}",
		"```json\n{\"workflow\": oops}\n```\n```json\n{\"b\":2}\n```",
		"```json\n{\"workflow\": oops} {\"b\":2}\n```",
	} {
		_, err := Sanitize(in)
		if err == nil {
			t.Fatalf("Sanitize(%q) expected error", in)
		}
		if !errors.Is(err, ErrMalformedOutput) {
			t.Fatalf("Sanitize(%q) error %v does not wrap ErrMalformedOutput", in, err)
		}
		var me MalformedOutputError
		if !errors.As(err, &me) {
			t.Fatalf("Sanitize(%q) error %T is not a MalformedOutputError", in, err)
		}
	}
}
