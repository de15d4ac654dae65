package tasks

import "splikz/internal/services"

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, mailer services.Mailer) {
	r.Register(ExpirePromotionsTask.TaskID(), ExpirePromotionsTask.HandleExecution)

	receipts := &SendPromotionReceiptTaskDef{mailer: mailer}
	r.Register(receipts.TaskID(), receipts.HandleExecution)
}
