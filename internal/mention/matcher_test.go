package mention

import "testing"

func TestMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		text   string
		userID string
		want   bool
	}{
		{name: "plain mention", text: "hey <@U123> can you look at this?", userID: "U123", want: true},
		{name: "mention only", text: "<@U123>", userID: "U123", want: true},
		{name: "no mention", text: "hey everyone", userID: "U123", want: false},
		{name: "different user", text: "hey <@U999>", userID: "U123", want: false},
		{name: "prefix of longer id", text: "hey <@U1234>", userID: "U123", want: false},
		{name: "empty text", text: "", userID: "U123", want: false},
		{name: "empty user", text: "hey <@U123>", userID: "", want: false},
		{name: "case sensitive", text: "hey <@u123>", userID: "U123", want: false},
		{name: "bare id without token", text: "U123 please respond", userID: "U123", want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Matches(tc.text, tc.userID); got != tc.want {
				t.Fatalf("Matches(%q, %q) = %v, want %v", tc.text, tc.userID, got, tc.want)
			}
		})
	}
}
