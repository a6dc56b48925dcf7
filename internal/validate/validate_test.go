package validate

import "testing"

func TestBranch(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"valid simple", "feature/add-login", true},
		{"valid single word", "main", true},
		{"empty", "   ", false},
		{"too long", stringsRepeat("a", 101), false},
		{"contains space", "feature add", false},
		{"contains dotdot", "feature..x", false},
		{"contains tilde", "feature~1", false},
		{"leading dash", "-feature", false},
		{"trailing dash", "feature-", false},
		{"exact HEAD", "HEAD", false},
		{"exact head lowercase", "head", false},
		{"leading dot", ".feature", false},
		{"trailing dot", "feature.", false},
		{"leading slash", "/feature", false},
		{"trailing slash", "feature/", false},
		{"double slash", "feature//x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Branch(tt.input)
			if got.Valid != tt.valid {
				t.Errorf("Branch(%q).Valid = %v, want %v (error=%q)", tt.input, got.Valid, tt.valid, got.Error)
			}
		})
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func TestCommitMessage(t *testing.T) {
	if r := CommitMessage("fix"); r.Valid {
		t.Error("expected too-short message to be invalid")
	}
	if r := CommitMessage("fix the login bug"); !r.Valid {
		t.Errorf("expected valid message, got error %q", r.Error)
	}
	if r := CommitMessage(stringsRepeat("x", 201)); r.Valid {
		t.Error("expected too-long message to be invalid")
	}
}

func TestToken(t *testing.T) {
	classic := "ghp_" + stringsRepeat("a", 36)
	if r := Token(classic); !r.Valid {
		t.Errorf("expected classic token valid, got %q", r.Error)
	}
	fineGrained := "github_pat_" + stringsRepeat("a", 82)
	if r := Token(fineGrained); !r.Valid {
		t.Errorf("expected fine-grained token valid, got %q", r.Error)
	}
	if r := Token("not-a-token"); r.Valid {
		t.Error("expected malformed token to be invalid")
	}
}

func TestSlackChannel(t *testing.T) {
	r := SlackChannel("general")
	if !r.Valid || r.Value != "#general" {
		t.Errorf("SlackChannel(general) = %+v, want #general", r)
	}
	if r := SlackChannel("#"); r.Valid {
		t.Error("expected too-short channel to be invalid")
	}
	if r := SlackChannel("General-Team"); r.Valid {
		t.Error("expected uppercase channel to be invalid")
	}
}

func TestURL(t *testing.T) {
	if r := URL("https://example.com/path"); !r.Valid {
		t.Errorf("expected valid URL, got %q", r.Error)
	}
	if r := URL("not a url"); r.Valid {
		t.Error("expected invalid URL to fail")
	}
	if r := URL("ftp://example.com", "https"); r.Valid {
		t.Error("expected scheme mismatch to fail")
	}
}

func TestDiscordWebhook(t *testing.T) {
	valid := "https://discord.com/api/webhooks/123456789/abcDEF-123_xyz"
	if r := DiscordWebhook(valid); !r.Valid {
		t.Errorf("expected valid webhook, got %q", r.Error)
	}
	if r := DiscordWebhook("https://discord.com/api/webhooks/abc/xyz"); r.Valid {
		t.Error("expected non-numeric ID to be invalid")
	}
	if r := DiscordWebhook("https://example.com/webhooks/1/x"); r.Valid {
		t.Error("expected wrong host to be invalid")
	}
}

func TestFilePath(t *testing.T) {
	if r := FilePath("src/main.go"); !r.Valid {
		t.Errorf("expected valid path, got %q", r.Error)
	}
	if r := FilePath("../etc/passwd"); r.Valid {
		t.Error("expected traversal path to be invalid")
	}
	if r := FilePath("/etc/passwd"); r.Valid {
		t.Error("expected /etc path to be invalid")
	}
	if r := FilePath("/root/.ssh/id_rsa"); r.Valid {
		t.Error("expected /root path to be invalid")
	}
	if r := FilePath("/var/log/syslog"); r.Valid {
		t.Error("expected /var/log path to be invalid")
	}
	if r := FilePath("a\x00b"); r.Valid {
		t.Error("expected null byte path to be invalid")
	}
}
