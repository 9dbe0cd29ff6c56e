package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"tg-monitor-bot/internal/usecase/cleanup"
)

// printReport выводит итог очистки таблицей по чатам.
func printReport(w io.Writer, report cleanup.PurgeReport) {
	mode := "удаление"
	if report.DryRun {
		mode = "пробный запуск"
	}
	fmt.Fprintf(w, "Очистка %s (%s)\n", report.RunID, mode)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ЧАТ\tНАЗВАНИЕ\tНАЙДЕНО\tУДАЛЕНО\tОШИБОК\tСТАТУС")
	for _, c := range report.Chats {
		status := "ok"
		if c.Err != nil {
			status = "ошибка: " + c.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n", c.Chat.ID, c.Chat.Title, c.Found, c.Result.Deleted, c.Result.Failed, status)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "Чатов: %d, с ошибкой: %d. Найдено: %d, удалено: %d, не удалось: %d\n",
		len(report.Chats), report.FailedChats(), report.Found, report.Total.Deleted, report.Total.Failed)
}
