// Importer CLI — инструмент командной строки для импорта CSV и Excel
// файлов в базу данных через backend импорта.
//
// Использование:
//
//	importer [--api-url URL] [--token TOKEN] [--json] [--metrics-addr ADDR] <command> [flags]
//
// Команды:
//
//	connect        Проверка подключения к БД
//	tables         Список таблиц
//	schema         Колонки таблицы
//	upload         Загрузка файла
//	preview        Превью загруженного файла
//	validate-file  Проверка загруженного файла на backend
//	inspect        Локальный просмотр файла
//	import         Управление import (start, status, cancel, history, watch)
//	wizard         Весь сценарий импорта одной командой
//
// Конфигурация читается из .env и переменных окружения IMPORTER_*.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shaiso/Importer/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.Execute(context.Background(), version, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
