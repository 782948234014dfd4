// Package cli реализует инструмент командной строки importer.
//
// # Обзор
//
// CLI — клиентская утилита для импорта CSV/Excel файлов в базу данных
// через backend импорта. Отдельные команды вызывают REST API напрямую,
// команда wizard проводит весь сценарий через wizard.Session.
//
// # Ключевые компоненты
//
// ## App
//
// Зависимости команд: конфигурация, client.Client, Output, логгер,
// метрики и (опционально) публикация событий. Создаётся лениво после
// парсинга PersistentFlags.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения и progress bar — в stderr.
// Это позволяет использовать pipe: importer import history --json | jq .
//
// ## Commands
//
//   - connect, tables, schema — подключение к БД и её схема
//   - upload, preview, validate-file, inspect — файлы
//   - import: start, status, cancel, history, watch
//   - wizard — полный сценарий импорта одной командой
//
// Каждая группа создаётся фабричной функцией (NewDatabaseCmds и т.д.),
// принимающей appFn — замыкание для ленивого создания App.
package cli
