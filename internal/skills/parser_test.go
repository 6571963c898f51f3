package skills

import (
	"reflect"
	"testing"
)

func TestFindTags(t *testing.T) {
	cases := []struct {
		text string
		want []Invocation
	}{
		{
			text: "balance: [[WALLET_BALANCE]]",
			want: []Invocation{{Tag: "WALLET_BALANCE", Raw: "[[WALLET_BALANCE]]"}},
		},
		{
			text: "[[SEND_CELO|0xabc|2.5]]",
			want: []Invocation{{Tag: "SEND_CELO", Args: []string{"0xabc", "2.5"}, Raw: "[[SEND_CELO|0xabc|2.5]]"}},
		},
		{
			text: "[[PRICE|celo]] then [[PRICE|btc]]",
			want: []Invocation{
				{Tag: "PRICE", Args: []string{"celo"}, Raw: "[[PRICE|celo]]"},
				{Tag: "PRICE", Args: []string{"btc"}, Raw: "[[PRICE|btc]]"},
			},
		},
		{
			// Empty args are preserved positionally.
			text: "[[SEND_TOKEN||0xabc|1]]",
			want: []Invocation{{Tag: "SEND_TOKEN", Args: []string{"", "0xabc", "1"}, Raw: "[[SEND_TOKEN||0xabc|1]]"}},
		},
		{text: "no tags here", want: []Invocation{}},
		{text: "[[lowercase]]", want: []Invocation{}},
		{text: "[[UNCLOSED|arg", want: []Invocation{}},
		{text: "[single brackets]", want: []Invocation{}},
		{text: "[[1BAD]]", want: []Invocation{}},
	}

	for _, tc := range cases {
		got := FindTags(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("FindTags(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestReplaceTagsUnhandledPassThrough(t *testing.T) {
	text := "keep [[UNKNOWN_TAG|x]] as is"
	got := ReplaceTags(text, func(inv Invocation) (string, bool) {
		return "", false
	})
	if got != text {
		t.Fatalf("got %q, want unchanged input", got)
	}
}

// A replacement containing tag syntax must not be re-expanded.
func TestReplaceTagsDoesNotRecurse(t *testing.T) {
	calls := 0
	got := ReplaceTags("[[ECHO]]", func(inv Invocation) (string, bool) {
		calls++
		return "[[ECHO]]", true
	})
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if got != "[[ECHO]]" {
		t.Fatalf("got %q", got)
	}
}
