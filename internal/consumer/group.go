package consumer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var (
	_ ports.MessageConsumer = (*Group)(nil)
	_ ports.StatsProvider   = (*Group)(nil)
)

// Group — несколько независимых циклов; общего изменяемого состояния у них нет.
type Group struct {
	loops []*Loop
}

func NewGroup(loops ...*Loop) *Group {
	return &Group{loops: loops}
}

// Run — запускает все циклы и ждёт их завершения.
// Завершение одного цикла с ошибкой отменяет контекст остальных.
func (g *Group) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, l := range g.loops {
		l := l
		eg.Go(func() error { return l.Run(egCtx) })
	}
	return eg.Wait()
}

// Stop — мягкая остановка всех циклов.
func (g *Group) Stop() {
	for _, l := range g.loops {
		l.Stop()
	}
}

// Snapshots — счётчики всех циклов.
func (g *Group) Snapshots() []domain.ConsumerStats {
	out := make([]domain.ConsumerStats, 0, len(g.loops))
	for _, l := range g.loops {
		out = append(out, l.Stats())
	}
	return out
}
