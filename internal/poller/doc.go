// Package poller опрашивает статус import job на backend.
//
// Poller держит не более одной активной задачи (Task). Задача
// запрашивает статус на каждом тике таймера и сама останавливается,
// когда import переходит в финальный статус (completed, failed,
// cancelled). Таймер берётся из clockwork.Clock, поэтому в тестах
// время двигается вручную.
//
// Ошибки poll не останавливают задачу сразу: каждая передаётся в
// OnError, а задача завершается с ErrRetryExhausted только после
// MaxConsecutiveErrors ошибок подряд.
package poller
