package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsSubmittedTotal 按申请类型统计的提交数
	DocumentsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edocs",
		Name:      "documents_submitted_total",
		Help:      "Number of documents submitted, by request type.",
	}, []string{"type"})

	// DocumentTransitionsTotal 按目标状态统计的审批流转次数
	DocumentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edocs",
		Name:      "document_transitions_total",
		Help:      "Number of document status transitions, by target status.",
	}, []string{"status"})

	// LoginAttemptsTotal 登录结果统计：success / not_found / pending / bad_password
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edocs",
		Name:      "login_attempts_total",
		Help:      "Number of login attempts, by outcome.",
	}, []string{"outcome"})

	// OnboardingCompletedTotal 完成激活流程的账号数
	OnboardingCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "edocs",
		Name:      "onboarding_completed_total",
		Help:      "Number of accounts that finished onboarding.",
	})
)
