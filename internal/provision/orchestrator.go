// Package provision раздаёт учётки пользователя по всем активным панелям
// и собирает итоговый список ссылок подписки.
package provision

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vpn-reseller-bot/internal/db"
	"vpn-reseller-bot/internal/identity"
	"vpn-reseller-bot/internal/logger"
	"vpn-reseller-bot/internal/panel"
)

// Node — одна ссылка подключения с указанием панели-источника
type Node struct {
	PanelTitle string
	URI        string
}

// PanelAPI — то, что оркестратору нужно от клиента панели
type PanelAPI interface {
	ListInbounds(ctx context.Context) ([]panel.Inbound, error)
	EnsureClient(ctx context.Context, inb panel.Inbound, identity, email string, expiry time.Time, trafficLimitGB int) error
	Domain() string
	Close()
}

// Панели обрабатываются параллельно, но с ограничением: не хотим
// вышибать ни свой пул соединений, ни хилые апстримы
const panelWorkers = 4

const perPanelTimeout = 25 * time.Second

type Orchestrator struct {
	loadPanels func() ([]db.Panel, error)
	newClient  func(p db.Panel) PanelAPI
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		loadPanels: db.ActivePanels,
		newClient: func(p db.Panel) PanelAPI {
			return panel.NewClient(p.BaseURL, p.Username, p.Password, p.Domain)
		},
	}
}

// PanelScope — стабильная область панели для вывода идентичности.
// Завязана на первичный ключ: переименование или смена адреса панели
// не должны менять уже выданные клиентские UUID.
func PanelScope(panelID uint) string {
	return "panel-" + strconv.FormatUint(uint64(panelID), 10)
}

// ProvisionUser идемпотентно раскатывает пользователя по всем активным
// панелям и возвращает дедуплицированный список ссылок. Отказ одной
// панели не мешает остальным: она просто не даёт ссылок в этот раз.
func (o *Orchestrator) ProvisionUser(ctx context.Context, userScope string, durationDays int) ([]Node, error) {
	return o.ProvisionUserUntil(ctx, userScope, time.Now().AddDate(0, 0, durationDays))
}

// ProvisionUserUntil — то же, но с точным сроком окончания: при повторной
// раскатке по запросу подписки срок на панелях выставляется в срок
// подписки, а не отсчитывается заново
func (o *Orchestrator) ProvisionUserUntil(ctx context.Context, userScope string, expiry time.Time) ([]Node, error) {
	panels, err := o.loadPanels()
	if err != nil {
		return nil, fmt.Errorf("provision: load panels: %w", err)
	}

	// По слоту результата на панель: воркеры не делят между собой
	// изменяемое состояние, слияние — после Wait
	results := make([][]Node, len(panels))
	g := &errgroup.Group{}
	g.SetLimit(panelWorkers)
	for i, p := range panels {
		i, p := i, p
		g.Go(func() error {
			nodes, err := o.provisionPanel(ctx, p, userScope, expiry)
			if err != nil {
				// Частичный отказ: логируем и продолжаем без этой панели
				logger.Warn("panel provisioning skipped",
					zap.Uint("panel_id", p.ID),
					zap.String("panel", p.Title),
					zap.Error(err))
				return nil
			}
			results[i] = nodes
			return nil
		})
	}
	g.Wait()

	// Дедупликация по точному совпадению строки; порядок стабилен —
	// первый встреченный в порядке возрастания id панели
	seen := make(map[string]struct{})
	var out []Node
	for _, nodes := range results {
		for _, n := range nodes {
			if _, ok := seen[n.URI]; ok {
				continue
			}
			seen[n.URI] = struct{}{}
			out = append(out, n)
		}
	}
	return out, nil
}

func (o *Orchestrator) provisionPanel(ctx context.Context, p db.Panel, userScope string, expiry time.Time) ([]Node, error) {
	ctx, cancel := context.WithTimeout(ctx, perPanelTimeout)
	defer cancel()

	uid, err := identity.Derive(PanelScope(p.ID), userScope)
	if err != nil {
		return nil, err
	}
	client := o.newClient(p)
	defer client.Close()

	inbounds, err := client.ListInbounds(ctx)
	if err != nil {
		return nil, err
	}
	email := userScope + "@" + client.Domain()
	var nodes []Node
	for _, inb := range inbounds {
		if !panel.SupportedProtocol(inb.Protocol) {
			continue
		}
		if err := client.EnsureClient(ctx, inb, uid, email, expiry, 0); err != nil {
			logger.Warn("inbound provisioning failed",
				zap.Uint("panel_id", p.ID),
				zap.Int("inbound_id", inb.ID),
				zap.Error(err))
			continue
		}
		label := p.Title
		if inb.Remark != "" {
			label = p.Title + " " + inb.Remark
		}
		uri, err := panel.BuildURI(inb, uid, label, client.Domain())
		if err != nil {
			continue
		}
		nodes = append(nodes, Node{PanelTitle: p.Title, URI: uri})
	}
	return nodes, nil
}
