package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine outcome metrics. HTTP metrics live in the api package.
var (
	CommissionsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_commissions_credited_total",
		Help: "Upline commission credits applied, labeled by depth",
	}, []string{"depth"})

	CommissionAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_commission_amount_total",
		Help: "Total commission amount credited (minor units)",
	})

	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_promotions_total",
		Help: "Level promotions applied",
	})

	Collections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_payout_collections_total",
		Help: "Periodic payout collection attempts, by period and outcome",
	}, []string{"period", "outcome"})

	WithdrawalSettlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_withdrawal_settlements_total",
		Help: "Withdrawal settlements, by outcome",
	}, []string{"outcome"})

	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_notifications_published_total",
		Help: "Notifications handed to the sink, by kind",
	}, []string{"kind"})
)
