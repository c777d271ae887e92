package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLeaseStatus(t *testing.T) {
	tests := []struct {
		name             string
		tenantSigned     bool
		landlordSigned   bool
		paymentsComplete bool
		terminated       bool
		want             LeaseStatus
	}{
		{"без подписей", false, false, false, false, LeaseStatusPendingTenant},
		{"только подпись арендатора", true, false, false, false, LeaseStatusPendingLandlord},
		{"только подпись арендодателя", false, true, false, false, LeaseStatusPendingTenant},
		{"обе подписи без платежей", true, true, false, false, LeaseStatusFullySigned},
		{"обе подписи и платежи", true, true, true, false, LeaseStatusActive},
		{"платежи без подписи арендодателя", true, false, true, false, LeaseStatusPendingLandlord},
		{"платежи без единой подписи", false, false, true, false, LeaseStatusPendingTenant},
		{"расторжение приоритетнее активации", true, true, true, true, LeaseStatusTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLeaseStatus(tt.tenantSigned, tt.landlordSigned, tt.paymentsComplete, tt.terminated)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeLeaseStatusTerminatedDominates(t *testing.T) {
	// Расторжение побеждает при любой комбинации остальных флагов
	for _, tenantSigned := range []bool{false, true} {
		for _, landlordSigned := range []bool{false, true} {
			for _, paymentsComplete := range []bool{false, true} {
				got := ComputeLeaseStatus(tenantSigned, landlordSigned, paymentsComplete, true)
				assert.Equal(t, LeaseStatusTerminated, got)
			}
		}
	}
}

func TestLeaseSignable(t *testing.T) {
	// Подписи принимаются только в фазе подписания
	signable := []LeaseStatus{LeaseStatusPendingTenant, LeaseStatusPendingLandlord, LeaseStatusFullySigned}
	for _, status := range signable {
		lease := &Lease{Status: status}
		assert.True(t, lease.Signable(), "статус %s должен допускать подписание", status)
	}

	closed := []LeaseStatus{LeaseStatusActive, LeaseStatusTerminated, LeaseStatusExpired}
	for _, status := range closed {
		lease := &Lease{Status: status}
		assert.False(t, lease.Signable(), "статус %s не должен допускать подписание", status)
	}
}
