// Package ws предоставляет WebSocket транспорт для hermes:
//   - Сервер оборачивает любой hermes.Handler (Router или Mux) в http.Handler
//   - Конкурентные вызовы эндпоинтов поверх одного соединения с корреляцией по requestId
//   - Сокет-сессии: каждая сессия живёт на отдельном соединении
//   - Закрытие сокета с любой стороны закрывает соединение и доходит до партнёра
//
// # Сервер
//
//	router := hermes.NewRouter(endpoints, sockets, hermes.DefaultRouterConfig())
//	http.Handle("/ws", ws.NewServer(router, ws.DefaultServerConfig()))
//
// # Клиент
//
//	client := ws.NewClient(ws.DefaultClientConfig("ws://localhost:8080/ws"))
//	client.Connect(ctx)
//
//	endpoints := hermes.NewEndpointClient(client.EndpointTransport())
//	sum, err := hermes.Invoke[int](ctx, endpoints.Get("math", "add"), 1, 2)
//
//	sockets := hermes.NewSocketClient(client.SocketTransport())
//	sock, err := sockets.Get("echo").Open(ctx)
//
// # Протокол сообщений
//
// Первое сообщение на соединении определяет его роль. Запрос с тегом
// "socket" превращает соединение в сокет-сессию, после чего все текстовые
// кадры передаются как есть. Любое другое сообщение делает соединение
// каналом для вызовов эндпоинтов:
//
//	{"__hermes__": "endpoint", "address": "default", "requestId": "...", "path": ["math", "add"], "args": [1, 2]}
//	{"__hermes__": "endpoint", "requestId": "...", "value": 3}
//
// Ошибки протокола (неизвестный путь, битый конверт) сервер возвращает как
// ответ с "protocol": true, чтобы вызывающая сторона не ждала таймаута.
package ws
