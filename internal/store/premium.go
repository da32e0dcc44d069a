package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// defaultTeamCount — число команд турнира, если оно не задано.
const defaultTeamCount = 2

// SetPremiumPlan меняет тариф. Платные тарифы действуют PremiumDuration;
// с payWithWallet цена списывается с кошелька, иначе считается, что
// оплата прошла картой.
func (s *Store) SetPremiumPlan(plan models.PremiumPlan, payWithWallet bool) (*Pending, error) {
	if !plan.Valid() {
		return nil, models.ErrInvalidInput
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	prevPlan, prevExpires := s.state.PremiumPlan, s.state.PremiumExpiresAt

	var expiresAt *time.Time
	if plan != models.PremiumFree {
		t := s.now().UTC().Add(models.PremiumDuration)
		expiresAt = &t
	}

	var tx *models.WalletTransaction
	if payWithWallet && plan != models.PremiumFree {
		price := plan.Limits().Price
		if s.state.WalletBalance.LessThan(price) {
			return nil, models.ErrInsufficientFunds
		}
		t := s.newTransaction(user.ID, models.TxPayment, price, "Premium "+string(plan), "")
		tx = &t
		s.state.addTransaction(t)
	}
	s.state.setPremium(plan, expiresAt)

	userID := user.ID
	return s.enqueue(&task{
		op: "SetPremiumPlan",
		persist: func(ctx context.Context) (func(*State), error) {
			if tx == nil {
				return nil, s.gw.SetPremium(ctx, userID, plan, expiresAt)
			}
			saved, balance, err := s.gw.PurchasePremium(ctx, userID, plan, *expiresAt)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				st.replaceTransaction(tx.ID, saved)
				s.reconcileBalance(st, balance)
			}, nil
		},
		revert: func(st *State) {
			if tx != nil {
				st.removeTransaction(tx.ID)
			}
		},
		undo: map[string]func(*State){
			"premium": func(st *State) {
				st.setPremium(prevPlan, prevExpires)
			},
		},
	}), nil
}

// AddTournament создаёт турнир для плана. Турниры доступны только на
// тарифе club и только создателю плана. Если команды не переданы,
// создаются TeamCount пустых команд с именами на языке пользователя.
func (s *Store) AddTournament(in models.TournamentInput) (*models.Tournament, *Pending, error) {
	if strings.TrimSpace(in.Sport) == "" || in.PlayersPerTeam < 1 {
		return nil, nil, models.ErrInvalidInput
	}
	if err := s.begin(); err != nil {
		return nil, nil, err
	}
	defer s.mu.Unlock()

	if _, err := s.requireUser(); err != nil {
		return nil, nil, err
	}
	if !s.state.effectivePremium(s.now()).Limits().TournamentsAllowed {
		return nil, nil, models.ErrPremiumRequired
	}
	if _, _, err := s.ownPlan(in.PlanID); err != nil {
		return nil, nil, err
	}
	for _, t := range s.state.Tournaments {
		if t.PlanID == in.PlanID {
			return nil, nil, models.ErrAlreadyExists
		}
	}

	tournament := models.Tournament{
		ID:             uuid.New().String(),
		PlanID:         in.PlanID,
		Sport:          strings.TrimSpace(in.Sport),
		PlayersPerTeam: in.PlayersPerTeam,
		Teams:          buildTeams(in, s.state.Language),
		CreatedAt:      s.now().UTC(),
	}
	s.state.Tournaments = append([]models.Tournament{tournament}, s.state.Tournaments...)

	pending := s.enqueue(&task{
		op: "AddTournament",
		persist: func(ctx context.Context) (func(*State), error) {
			created, err := s.gw.CreateTournament(ctx, tournament)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				for i := range st.Tournaments {
					if st.Tournaments[i].ID == tournament.ID {
						st.Tournaments[i] = *created
						return
					}
				}
			}, nil
		},
		revert: func(st *State) {
			out := make([]models.Tournament, 0, len(st.Tournaments))
			for _, t := range st.Tournaments {
				if t.ID != tournament.ID {
					out = append(out, t)
				}
			}
			st.Tournaments = out
		},
	})
	return &tournament, pending, nil
}

func buildTeams(in models.TournamentInput, lang models.Language) []models.TournamentTeam {
	if len(in.Teams) > 0 {
		teams := make([]models.TournamentTeam, len(in.Teams))
		for i, t := range in.Teams {
			if t.ID == "" {
				t.ID = uuid.New().String()
			}
			if strings.TrimSpace(t.Name) == "" {
				t.Name = models.TeamName(lang, i+1)
			}
			if t.Color == "" {
				t.Color = models.TeamColor(i)
			}
			t.Players = append([]models.UserSummary{}, t.Players...)
			teams[i] = t
		}
		return teams
	}

	count := in.TeamCount
	if count < 2 {
		count = defaultTeamCount
	}
	teams := make([]models.TournamentTeam, count)
	for i := range teams {
		teams[i] = models.TournamentTeam{
			ID:      uuid.New().String(),
			Name:    models.TeamName(lang, i+1),
			Color:   models.TeamColor(i),
			Players: []models.UserSummary{},
		}
	}
	return teams
}
