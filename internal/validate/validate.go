// Package validate implements the input validators from §4.8: branch
// names, commit messages, GitHub tokens, Slack channels, URLs, Discord
// webhook URLs, and file paths. Every validator returns a Result with a
// human-readable Japanese error message, externalized per spec so a
// future localization pass only has to touch this file.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Result is the outcome of a single validation call.
type Result struct {
	Valid bool
	Value string // normalized value, set only when Valid
	Error string // Japanese message, set only when !Valid
}

func ok(value string) Result  { return Result{Valid: true, Value: value} }
func fail(msg string) Result  { return Result{Valid: false, Error: msg} }
func failf(format string, a ...any) Result {
	return Result{Valid: false, Error: fmt.Sprintf(format, a...)}
}

var invalidBranchChars = regexp.MustCompile(`[~^:?*\[\]\\]`)

// Branch validates a Git branch name per §4.8.
func Branch(name string) Result {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fail("ブランチ名を入力してください")
	}
	if len(trimmed) > 100 {
		return fail("ブランチ名は100文字以内にしてください")
	}
	if strings.ContainsAny(trimmed, " \t\n") {
		return fail("ブランチ名に空白を含めることはできません")
	}
	if strings.Contains(trimmed, "..") {
		return fail("ブランチ名に'..'を含めることはできません")
	}
	if invalidBranchChars.MatchString(trimmed) {
		return fail("ブランチ名に使用できない文字が含まれています（~^:?*[]\\）")
	}
	if strings.HasPrefix(trimmed, "-") || strings.HasSuffix(trimmed, "-") {
		return fail("ブランチ名の先頭または末尾に'-'を使用できません")
	}
	if strings.EqualFold(trimmed, "HEAD") {
		return fail("'HEAD'はブランチ名として使用できません")
	}
	if strings.HasPrefix(trimmed, ".") || strings.HasSuffix(trimmed, ".") {
		return fail("ブランチ名の先頭または末尾に'.'を使用できません")
	}
	if strings.HasSuffix(trimmed, "/") || strings.HasPrefix(trimmed, "/") {
		return fail("ブランチ名の先頭または末尾に'/'を使用できません")
	}
	if strings.Contains(trimmed, "//") {
		return fail("ブランチ名に連続する'/'を含めることはできません")
	}
	return ok(trimmed)
}

// CommitMessage validates a commit message per §4.8.
func CommitMessage(msg string) Result {
	trimmed := strings.TrimSpace(msg)
	if len(trimmed) < 5 {
		return fail("コミットメッセージは5文字以上にしてください")
	}
	if len(trimmed) > 200 {
		return fail("コミットメッセージは200文字以内にしてください")
	}
	return ok(trimmed)
}

var classicTokenPattern = regexp.MustCompile(`^ghp_[A-Za-z0-9]{36}$`)
var fineGrainedTokenPattern = regexp.MustCompile(`^github_pat_[\w]{82}$`)

// Token validates a GitHub personal access token's shape per §4.8.
func Token(token string) Result {
	trimmed := strings.TrimSpace(token)
	if classicTokenPattern.MatchString(trimmed) || fineGrainedTokenPattern.MatchString(trimmed) {
		return ok(trimmed)
	}
	return fail("GitHubトークンの形式が正しくありません")
}

var slackChannelPattern = regexp.MustCompile(`^#[a-z0-9_-]+$`)

// SlackChannel validates and normalizes a Slack channel name per §4.8.
func SlackChannel(channel string) Result {
	trimmed := strings.TrimSpace(channel)
	if trimmed == "" {
		return fail("Slackチャンネル名を入力してください")
	}
	if !strings.HasPrefix(trimmed, "#") {
		trimmed = "#" + trimmed
	}
	if len(trimmed) < 2 || len(trimmed) > 22 {
		return fail("Slackチャンネル名は2〜22文字にしてください")
	}
	if !slackChannelPattern.MatchString(trimmed) {
		return fail("Slackチャンネル名に使用できる文字は英小文字・数字・'_'・'-'のみです")
	}
	return ok(trimmed)
}

// URL validates a URL, optionally requiring it use one of allowedSchemes
// (pass nil to accept any scheme).
func URL(raw string, allowedSchemes ...string) Result {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fail("URLの形式が正しくありません")
	}
	if len(allowedSchemes) > 0 {
		allowed := false
		for _, s := range allowedSchemes {
			if strings.EqualFold(u.Scheme, s) {
				allowed = true
				break
			}
		}
		if !allowed {
			return failf("URLのスキームは%sにしてください", strings.Join(allowedSchemes, "または"))
		}
	}
	return ok(trimmed)
}

var discordWebhookPattern = regexp.MustCompile(`^https://discord\.com/api/webhooks/\d+/[\w-]+$`)

// DiscordWebhook validates a Discord incoming-webhook URL per §4.8.
func DiscordWebhook(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if r := URL(trimmed, "https"); !r.Valid {
		return fail("Discord Webhook URLの形式が正しくありません")
	}
	if !discordWebhookPattern.MatchString(trimmed) {
		return fail("Discord Webhook URLの形式が正しくありません")
	}
	return ok(trimmed)
}

var forbiddenPathPrefixes = []string{"/etc", "/root", "/var/log"}

// FilePath validates a file path per §4.8: no traversal, no access to
// sensitive system prefixes, no embedded null bytes.
func FilePath(path string) Result {
	if strings.ContainsRune(path, 0) {
		return fail("パスにヌル文字を含めることはできません")
	}
	if strings.Contains(path, "..") {
		return fail("パスに'..'を含めることはできません")
	}
	for _, prefix := range forbiddenPathPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return failf("%s 以下のパスは使用できません", prefix)
		}
	}
	return ok(path)
}
