// Package validation проверяет данные мастера до обращения к backend.
//
// Три независимые проверки:
//   - Connection — агрегирует ошибки по всем полям подключения
//   - File — размер, расширение и MIME тип, первая ошибка
//   - ColumnMapping — полнота mapping, первая ошибка
//
// Все проверки возвращают *ValidationError или nil и никогда
// не обращаются к сети.
package validation
