// Package migrations содержит встроенные SQL миграции goose
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir каталог миграций внутри встроенной файловой системы
const Dir = "."
