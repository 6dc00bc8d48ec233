package desk

// Notification texts.
const (
	MsgLoginOK        = "Вход выполнен"
	MsgLoginFailed    = "Неверный логин или пароль"
	MsgServerDown     = "Ошибка соединения с сервером"
	MsgConnection     = "Ошибка соединения"
	MsgTicketCreated  = "Заявка создана"
	MsgCreateFailed   = "Ошибка создания заявки"
	MsgTicketClosed   = "Заявка закрыта"
	MsgConfirmFailed  = "Ошибка подтверждения заявки"
	MsgTicketReturned = "Заявка возвращена в работу"
	MsgReturnFailed   = "Ошибка возврата заявки"
	MsgTicketAssigned = "Заявка взята в работу"
	MsgAssignFailed   = "Ошибка назначения заявки"
	MsgRecsFailed     = "Ошибка получения рекомендаций"
	MsgRecAccepted    = "Рекомендация принята"
	MsgTicketResolved = "Заявка выполнена"
	MsgAddedToKB      = "Решение добавлено в базу знаний"
	MsgResolveFailed  = "Ошибка завершения заявки"
	MsgTicketsFailed  = "Ошибка загрузки заявок"
	MsgKBFailed       = "Ошибка загрузки базы знаний"
	MsgStatsFailed    = "Ошибка загрузки статистики"

	MsgSolutionRequired = "Введите решение специалиста"
)

// Empty states and labels.
const (
	EmptyTickets   = "Нет заявок"
	EmptyKnowledge = "База знаний пуста"
	EmptyRecs      = "Рекомендации отсутствуют"
)
