package db

import (
	"context"

	"github.com/freedom_case_2/servicedesk/internal/models"
	"github.com/freedom_case_2/servicedesk/internal/utils"
)

const DemoPassword = "password123"

// Seed loads the demo accounts and starter knowledge base.
func (s *Store) Seed(ctx context.Context) error {
	users := []User{
		{User: models.User{Email: "admin@example.com", FullName: "Администратор Системы", Role: models.RoleAdmin}},
		{User: models.User{Email: "specialist@example.com", FullName: "Иванов Иван Иванович", Role: models.RoleSpecialist}},
		{User: models.User{Email: "user@example.com", FullName: "Петров Петр Петрович", Role: models.RoleUser}},
	}
	for _, u := range users {
		u.PasswordHash = utils.HashPassword(DemoPassword)
		u.IsActive = true
		s.InsertUser(u)
	}

	return s.WithTx(ctx, func(tx *Tx) error {
		tx.InsertKnowledge(models.KnowledgeEntry{
			Problem:   "Не включается компьютер",
			Solution:  "Проверить питание и кабель, затем нажать кнопку включения",
			Frequency: 5,
		})
		tx.InsertKnowledge(models.KnowledgeEntry{
			Problem:   "Медленно работает интернет",
			Solution:  "Перезагрузить роутер и проверить кабель",
			Frequency: 3,
		})
		tx.InsertKnowledge(models.KnowledgeEntry{
			Problem:   "Принтер не печатает",
			Solution:  "Проверить подключение, очередь печати и драйвер",
			Frequency: 2,
		})
		return nil
	})
}
