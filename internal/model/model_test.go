package model

import "testing"

func TestDonationTransitions(t *testing.T) {
	allowed := [][2]DonationStatus{
		{DonationPending, DonationCompleted},
		{DonationPending, DonationFailed},
		{DonationCompleted, DonationRefunded},
	}
	for _, tr := range allowed {
		if !tr[0].CanTransition(tr[1]) {
			t.Errorf("%s -> %s should be allowed", tr[0], tr[1])
		}
	}

	denied := [][2]DonationStatus{
		{DonationCompleted, DonationPending},
		{DonationFailed, DonationCompleted},
		{DonationRefunded, DonationCompleted},
		{DonationPending, DonationRefunded},
	}
	for _, tr := range denied {
		if tr[0].CanTransition(tr[1]) {
			t.Errorf("%s -> %s should be rejected", tr[0], tr[1])
		}
	}
}

func TestProjectStatusAcceptsDonations(t *testing.T) {
	for _, s := range []ProjectStatus{ProjectActive, ProjectFunded} {
		if !s.AcceptsDonations() {
			t.Errorf("%s should accept donations", s)
		}
	}
	for _, s := range []ProjectStatus{ProjectDraft, ProjectClosed, ProjectCancelled} {
		if s.AcceptsDonations() {
			t.Errorf("%s should not accept donations", s)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	if !CategoryHealthcare.Valid() {
		t.Fatal("healthcare should be valid")
	}
	if Category("sports").Valid() {
		t.Fatal("sports should be invalid")
	}
}
