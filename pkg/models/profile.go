package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Gender del profilo, come salvato dal bot
const (
	GenderMale   = "м"
	GenderFemale = "ж"
)

// ErrInvalidProfile segnala un campo fuori intervallo
var ErrInvalidProfile = errors.New("invalid profile")

// Profile contiene i dati fisici e gli obiettivi di un utente
type Profile struct {
	ChatID int64   `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	UserID int64   `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	Gender string  `json:"gender" gorm:"size:1"`
	Age    int     `json:"age"`
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
	Goal   string  `json:"goal"`
	Diet   string  `json:"diet"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifica il nome della tabella
func (Profile) TableName() string {
	return "profiles"
}

// Empty riporta se il profilo non ha alcun dato utile
func (p Profile) Empty() bool {
	return p.Gender == "" && p.Age == 0 && p.Weight == 0 && p.Height == 0 && p.Goal == "" && p.Diet == ""
}

// Validate controlla i campi numerici e il genere; zero vale "non indicato"
func (p Profile) Validate() error {
	switch {
	case p.Gender != "" && p.Gender != GenderMale && p.Gender != GenderFemale:
		return fmt.Errorf("%w: gender must be %q or %q", ErrInvalidProfile, GenderMale, GenderFemale)
	case p.Age < 0 || p.Age > 120:
		return fmt.Errorf("%w: age out of range", ErrInvalidProfile)
	case p.Weight < 0 || p.Weight > 500:
		return fmt.Errorf("%w: weight out of range", ErrInvalidProfile)
	case p.Height < 0 || p.Height > 300:
		return fmt.Errorf("%w: height out of range", ErrInvalidProfile)
	}
	return nil
}

// Facts rende il profilo come righe di contesto, omettendo i campi vuoti.
// Il formato è quello letto dall'estrazione dei parametri corporei.
func (p Profile) Facts() string {
	if p.Empty() {
		return ""
	}

	var facts []string
	switch p.Gender {
	case GenderMale:
		facts = append(facts, "пол: мужчина")
	case GenderFemale:
		facts = append(facts, "пол: женщина")
	}
	if p.Age > 0 {
		facts = append(facts, fmt.Sprintf("возраст: %d лет", p.Age))
	}
	if p.Weight > 0 {
		facts = append(facts, fmt.Sprintf("вес: %g кг", p.Weight))
	}
	if p.Height > 0 {
		facts = append(facts, fmt.Sprintf("рост: %g см", p.Height))
	}
	if p.Goal != "" {
		facts = append(facts, "цель: "+p.Goal)
	}
	if p.Diet != "" {
		facts = append(facts, "питание: "+p.Diet)
	}

	return "Профиль пользователя: " + strings.Join(facts, ", ")
}
