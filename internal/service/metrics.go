package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"library-api/internal/domain"
)

var (
	borrowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "library_borrow_total", Help: "Borrow attempts by result"},
		[]string{"result"},
	)
	closeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "library_borrowing_closed_total", Help: "Borrowings closed by final status"},
		[]string{"status"},
	)
	sweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "library_overdue_swept_total", Help: "Borrowings moved to OVERDUE by the sweeper"},
	)
)

func init() { prometheus.MustRegister(borrowTotal, closeTotal, sweptTotal) }

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindOf(err).String()
}
