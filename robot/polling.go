package robot

import (
	"context"
	"time"

	"github.com/iwtcode/densoAdapter/models"
)

// PollingResult содержит данные или ошибку от одной попытки опроса.
type PollingResult struct {
	Data *models.Telemetry
	Err  error
}

// StartPolling периодически вызывает ReadTelemetry и отдаёт результаты в канал.
// Вызовы идут последовательно в одной горутине: сессия не допускает параллельных запросов,
// поэтому медленный опрос пропускает тики, а не накладывается на следующий.
// Канал закрывается при отмене ctx.
func (s *Session) StartPolling(ctx context.Context, interval time.Duration) <-chan PollingResult {
	results := make(chan PollingResult)

	go func() {
		defer close(results)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.log.Debug("polling stopped: context cancelled")
				return
			case <-ticker.C:
				data, err := s.ReadTelemetry()
				select {
				case results <- PollingResult{Data: data, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results
}

// WatchCollision получает переменную флага столкновения, опрашивает её с интервалом
// и вызывает onHit при ненулевом значении. Переменная освобождается при выходе.
// Возвращает nil при отмене ctx, иначе первую ошибку чтения.
func (s *Session) WatchCollision(ctx context.Context, interval time.Duration, onHit func(flag int)) error {
	h, err := s.EstablishCollisionVariable()
	if err != nil {
		return err
	}
	defer func() { _ = s.ReleaseVariable(h) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			flag, err := s.PollCollisionFlag(h)
			if err != nil {
				return err
			}
			if flag != 0 && onHit != nil {
				onHit(flag)
			}
		}
	}
}
