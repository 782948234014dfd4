// Package notify публикует события жизненного цикла import в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchange и очереди событий
//   - publisher.go  — публикация событий
//
// Типы сообщений:
//   - import.started  — import запущен на backend
//   - import.finished — import перешёл в финальный статус
//
// Exchange importer.imports (topic), routing keys: started, finished.
package notify
