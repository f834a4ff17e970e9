package log

import "log/slog"

func TaskID[T ~string](id T) slog.Attr {
	return slog.String("task_id", string(id))
}

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func StepType[T ~string](t T) slog.Attr {
	return slog.String("step_type", string(t))
}

func StepIndex(i int) slog.Attr {
	return slog.Int("step_index", i)
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
