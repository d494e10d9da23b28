package version

import "fmt"

// Service — имя сервиса для логов и health-ответов.
const Service = "shop-service"

// Заполняются при сборке через -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, buildDate }

// String собирает строку идентификации сервиса.
func String() string {
	return fmt.Sprintf("%s version=%s commit=%s built=%s", Service, version, commit, buildDate)
}
