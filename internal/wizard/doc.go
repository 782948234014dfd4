// Package wizard ведёт пользователя по шагам import: подключение к БД,
// загрузка файла, выбор таблицы, mapping колонок и сам import.
//
// Session — явный объект состояния мастера. Все изменения идут через
// его методы, а презентационный слой читает копию состояния через
// Snapshot. Сетевые вызовы выполняются без удержания блокировки;
// их результат применяется, только если сессию не сбросили (Reset)
// за время запроса.
//
// Переходы:
//
//	Connect → Upload → SelectTable → MapColumns → Import
//
// Advance переводит на следующий шаг, сохраняя артефакт текущего шага,
// Retreat возвращает на предыдущий, Reset очищает всё и возвращает на
// первый шаг. Шаг Import покидается только через Reset.
package wizard
