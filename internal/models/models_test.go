package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestBalance(t *testing.T) {
	tests := []struct {
		name string
		txs  []WalletTransaction
		want string
	}{
		{name: "empty ledger", txs: nil, want: "0"},
		{
			name: "credits and debits",
			txs: []WalletTransaction{
				{Type: TxDeposit, Amount: decimal.RequireFromString("20")},
				{Type: TxPayment, Amount: decimal.RequireFromString("5.99")},
				{Type: TxRefund, Amount: decimal.RequireFromString("3.5")},
				{Type: TxWithdrawal, Amount: decimal.RequireFromString("1.01")},
				{Type: TxIncome, Amount: decimal.RequireFromString("0.5")},
			},
			want: "17",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Balance(tt.txs)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestPlan_IsFull(t *testing.T) {
	p := Plan{MaxParticipants: intPtr(2), Participants: []UserSummary{{ID: "a"}}}
	assert.False(t, p.IsFull())
	assert.Equal(t, 1, p.CurrentParticipants())

	p.Participants = append(p.Participants, UserSummary{ID: "b"})
	assert.True(t, p.IsFull())
	assert.True(t, p.HasParticipant("b"))

	p.MaxParticipants = nil
	assert.False(t, p.IsFull())
}

func TestPlan_CloneIsDeep(t *testing.T) {
	p := Plan{ID: "p1", MaxParticipants: intPtr(5), Participants: []UserSummary{{ID: "a"}}}
	c := p.Clone()
	c.Participants[0].ID = "changed"
	*c.MaxParticipants = 1

	assert.Equal(t, "a", p.Participants[0].ID)
	assert.Equal(t, 5, *p.MaxParticipants)
}

func TestUserUpdate_Apply(t *testing.T) {
	u := User{Name: "Ana", Interests: []string{"padel"}}
	u.ApplyDefaults()

	name := "Ana Maria"
	lang := LanguageEN
	upd := UserUpdate{Name: &name, Language: &lang, Age: intPtr(30)}
	require.False(t, upd.IsEmpty())
	upd.Apply(&u)

	assert.Equal(t, "Ana Maria", u.Name)
	assert.Equal(t, LanguageEN, u.Language)
	require.NotNil(t, u.Age)
	assert.Equal(t, 30, *u.Age)
	assert.Equal(t, []string{"padel"}, u.Interests)
	assert.True(t, UserUpdate{}.IsEmpty())
}

func TestUserUpdate_ClearAndFields(t *testing.T) {
	u := User{Name: "Ana", Age: intPtr(30), Location: &Location{City: "Madrid"}}

	upd := UserUpdate{ClearAge: true, ClearLocation: true}
	require.False(t, upd.IsEmpty())
	assert.Equal(t, []UserField{FieldAge, FieldLocation}, upd.Fields())
	upd.Apply(&u)
	assert.Nil(t, u.Age)
	assert.Nil(t, u.Location)

	name := "B"
	mixed := UserUpdate{Name: &name, Age: intPtr(40)}
	assert.Equal(t, []UserField{FieldName, FieldAge}, mixed.Fields())
	assert.Equal(t, UserUpdate{Age: mixed.Age}, mixed.Only(FieldAge))
	assert.False(t, mixed.Only(FieldName).Has(FieldAge))
	assert.Equal(t, "age", FieldAge.String())
}

func TestUser_ApplyDefaults(t *testing.T) {
	var u User
	u.ApplyDefaults()

	assert.Equal(t, LanguageES, u.Language)
	assert.Equal(t, PremiumFree, u.PremiumPlan)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, DefaultNotificationSettings(), u.NotificationSettings)
	assert.NotNil(t, u.PaidPlans)
}

func TestEffective(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.Equal(t, PremiumFree, Effective(PremiumFree, &future, now))
	assert.Equal(t, PremiumFree, Effective(PremiumPro, &past, now))
	assert.Equal(t, PremiumClub, Effective(PremiumClub, &future, now))
	assert.Equal(t, PremiumPro, Effective(PremiumPro, nil, now))
}

func TestPremiumLimits(t *testing.T) {
	assert.Equal(t, 3, PremiumFree.Limits().PlansPerMonth)
	assert.Equal(t, 20, PremiumPro.Limits().MaxParticipants)
	assert.True(t, PremiumClub.Limits().TournamentsAllowed)
	assert.True(t, PremiumClub.Limits().Price.Equal(decimal.RequireFromString("14.99")))
	assert.False(t, PremiumPlan("gold").Valid())
	assert.Equal(t, 3, PremiumPlan("gold").Limits().PlansPerMonth)
}

func TestPaymentMethods(t *testing.T) {
	methods := []PaymentMethodConfig{
		{Type: SavedBank, IBAN: "ES00", IsDefault: true},
		{Type: SavedBizum, BizumPhone: "600000000"},
	}

	methods = UpsertPaymentMethod(methods, PaymentMethodConfig{Type: SavedPaypal, PaypalEmail: "a@b.c", IsDefault: true})
	require.Len(t, methods, 3)
	defaults := 0
	for _, m := range methods {
		if m.IsDefault {
			defaults++
			assert.Equal(t, SavedPaypal, m.Type)
		}
	}
	assert.Equal(t, 1, defaults)

	methods = UpsertPaymentMethod(methods, PaymentMethodConfig{Type: SavedBank, IBAN: "ES11"})
	require.Len(t, methods, 3)

	methods, ok := SetDefaultPaymentMethod(methods, SavedBizum)
	require.True(t, ok)
	for _, m := range methods {
		assert.Equal(t, m.Type == SavedBizum, m.IsDefault)
	}

	methods, ok = RemovePaymentMethod(methods, SavedBank)
	require.True(t, ok)
	assert.Len(t, methods, 2)

	_, ok = RemovePaymentMethod(methods, SavedBank)
	assert.False(t, ok)
}

func TestUpsertPaymentMethod_KeepsReplacedDefault(t *testing.T) {
	methods := []PaymentMethodConfig{
		{Type: SavedBank, IBAN: "ES00", IsDefault: true},
		{Type: SavedBizum, BizumPhone: "600000000"},
	}

	methods = UpsertPaymentMethod(methods, PaymentMethodConfig{Type: SavedBank, IBAN: "ES11"})
	require.Len(t, methods, 2)
	for _, m := range methods {
		assert.Equal(t, m.Type == SavedBank, m.IsDefault)
		if m.Type == SavedBank {
			assert.Equal(t, "ES11", m.IBAN)
		}
	}

	methods = UpsertPaymentMethod(methods, PaymentMethodConfig{Type: SavedBizum, BizumPhone: "611111111"})
	for _, m := range methods {
		assert.Equal(t, m.Type == SavedBank, m.IsDefault)
	}
}

func TestTournament_CloneIsDeep(t *testing.T) {
	tr := Tournament{ID: "t1", Teams: []TournamentTeam{{ID: "a", Players: []UserSummary{{ID: "u1", Name: "Ana"}}}}}
	c := tr.Clone()
	c.Teams[0].Players[0].Name = "changed"
	c.Teams[0].Name = "changed"
	assert.Equal(t, "Ana", tr.Teams[0].Players[0].Name)
	assert.Empty(t, tr.Teams[0].Name)
}

func TestNotificationEvent_Recipients(t *testing.T) {
	e := NotificationEvent{RecipientIDs: []string{"a", "b", "a", "", "c"}, ExcludeID: "b"}
	assert.Equal(t, []string{"a", "c"}, e.Recipients())
}

func TestNotificationSettings_Allows(t *testing.T) {
	s := DefaultNotificationSettings()
	s.UpcomingPlans = false

	assert.True(t, s.Allows(NotificationPlanChange))
	assert.False(t, s.Allows(NotificationUpcoming))
	assert.False(t, s.Allows(NotificationType("unknown")))
}

func TestTeamNameAndColor(t *testing.T) {
	assert.Equal(t, "Equipo 1", TeamName(LanguageES, 1))
	assert.Equal(t, "Team 2", TeamName(LanguageEN, 2))
	assert.Equal(t, "#ef4444", TeamColor(0))
	assert.Equal(t, "#ef4444", TeamColor(16))
}

func TestIsDomain(t *testing.T) {
	assert.True(t, IsDomain(fmt.Errorf("op: %w", ErrPlanFull)))
	assert.False(t, IsDomain(fmt.Errorf("op: %w", assert.AnError)))
	assert.False(t, IsDomain(nil))
}
