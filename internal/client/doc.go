// Package client реализует HTTP-клиент backend импорта.
//
// Клиент покрывает REST контракт backend: проверку подключения,
// список таблиц и схему, загрузку файла, старт, статус, отмену
// и историю import.
//
// Перехватчики resty добавляют к каждому запросу X-Request-ID,
// bearer token (если задан) и пишут debug-логи запросов и ответов.
//
// Все ошибки возвращаются как *RequestError: Detail — сообщение для
// пользователя (detail из тела ошибки, текст транспортной ошибки или
// сообщение по умолчанию для операции).
//
//	c := client.New(client.Config{BaseURL: "http://localhost:8000"})
//	conn, err := c.TestConnection(ctx, creds)
package client
