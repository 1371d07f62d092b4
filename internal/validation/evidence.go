// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/url"
	"strings"
)

// IsValidEvidenceURL проверяет, что ссылка на подтверждение вклада ведёт на
// страницу pull request, issue или обсуждения в репозитории на github.com.
func IsValidEvidenceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme != "https" {
		return false
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return false
	}

	// Ожидаем путь вида /{owner}/{repo}/{pull|issues|discussions}/{number...}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 {
		return false
	}
	if parts[0] == "" || parts[1] == "" {
		return false
	}

	switch parts[2] {
	case "pull", "issues", "discussions":
		return parts[3] != ""
	default:
		return false
	}
}

// IsValidRepoURL проверяет, что ссылка указывает на репозиторий github.com.
func IsValidRepoURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme != "https" {
		return false
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}
