package security

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
)

// IsAdmin - процесс запущен от root (Unix) или администратора (Windows)
func IsAdmin() bool {
	if runtime.GOOS == "windows" {
		// обычный пользователь не может открыть физический диск
		f, err := os.Open(`\\.\PHYSICALDRIVE0`)
		if err != nil {
			return false
		}
		f.Close()
		return true
	}
	return os.Geteuid() == 0
}

// CurrentUser возвращает имя пользователя ОС для сообщений
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "unknown"
}

// ValidatorFor возвращает валидатор для CLI.
// Отключить проверку SQL (unsafe=true) может только администратор.
func ValidatorFor(unsafe bool) (*SQLValidator, error) {
	if unsafe && !IsAdmin() {
		return nil, fmt.Errorf("%w: --unsafe-sql requires administrator privileges (current user: %s)",
			ErrUnsafeSQL, CurrentUser())
	}
	return NewSQLValidator(!unsafe), nil
}
