package normalize

import "testing"

func TestNormalizeForMatch(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases and trims", in: "  Midnight City  ", want: "midnight city"},
		{name: "drops feat parenthetical", in: "Blinding Lights (feat. Someone)", want: "blinding lights"},
		{name: "drops trailing feat clause", in: "Blinding Lights feat. Someone", want: "blinding lights"},
		{name: "drops radio edit", in: "Shape Of You (Radio Edit)", want: "shape of you"},
		{name: "preserves remix marker", in: "Sandstorm (Remix)", want: "sandstorm remix"},
		{name: "preserves live marker", in: "Alive (Live)", want: "alive live"},
		{name: "preserves extended marker", in: "Strobe (Extended)", want: "strobe extended"},
		{name: "strips punctuation", in: "Don't Stop Me Now!", want: "dont stop me now"},
		{name: "empty falls back to original", in: "!!!", want: "!!!"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeForMatch(tt.in); got != tt.want {
				t.Errorf("NormalizeForMatch(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeForPathCheck(t *testing.T) {
	tc := []struct{ in, want string }{
		{"The Weeknd", "theweeknd"},
		{"AC/DC", "acdc"},
		{"Sigur Rós", "sigurrs"},
		{"", ""},
	}

	for _, tt := range tc {
		if got := NormalizeForPathCheck(tt.in); got != tt.want {
			t.Errorf("NormalizeForPathCheck(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanYouTube(t *testing.T) {
	tc := []struct {
		name     string
		title    string
		uploader string
		want     string
	}{
		{
			name:     "strips leading artist when corroborated by uploader",
			title:    "Daft Punk - One More Time (Official Music Video)",
			uploader: "Daft Punk",
			want:     "One More Time",
		},
		{
			name:     "drops bracketed content",
			title:    "Song Title [Official Audio]",
			uploader: "",
			want:     "Song Title",
		},
		{
			name:     "truncates at pipe",
			title:    "Song Title | Full Album Stream",
			uploader: "",
			want:     "Song Title",
		},
		{
			name:     "strips trailing feat clause",
			title:    "Song Title feat. Someone Else",
			uploader: "",
			want:     "Song Title",
		},
		{
			name:     "reverts to original when result too short",
			title:    "A",
			uploader: "",
			want:     "A",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanYouTube(tt.title, tt.uploader); got != tt.want {
				t.Errorf("CleanYouTube(%q, %q) = %q, want %q", tt.title, tt.uploader, got, tt.want)
			}
		})
	}
}
