package domain

import "strings"

// ProfileKey est l'unique slot du key-value store qui contient le profil.
const ProfileKey = "user-info"

// ProfileMinLen est la longueur minimale (après trim) de chaque champ.
const ProfileMinLen = 2

type UserProfile struct {
	DisplayName string `json:"displayName"`
	RoleLabel   string `json:"roleLabel"`
}

// Trimmed renvoie une copie avec les deux champs nettoyés.
func (p UserProfile) Trimmed() UserProfile {
	return UserProfile{
		DisplayName: strings.TrimSpace(p.DisplayName),
		RoleLabel:   strings.TrimSpace(p.RoleLabel),
	}
}

// Complete: les deux champs sont non vides après trim.
func (p UserProfile) Complete() bool {
	t := p.Trimmed()
	return t.DisplayName != "" && t.RoleLabel != ""
}

// FieldErrors renvoie un message par champ invalide (vide si le profil est valide).
func (p UserProfile) FieldErrors() map[string]string {
	t := p.Trimmed()
	out := map[string]string{}
	switch {
	case t.DisplayName == "":
		out["displayName"] = "Username is required"
	case len([]rune(t.DisplayName)) < ProfileMinLen:
		out["displayName"] = "Username must be at least 2 characters"
	}
	switch {
	case t.RoleLabel == "":
		out["roleLabel"] = "Job title is required"
	case len([]rune(t.RoleLabel)) < ProfileMinLen:
		out["roleLabel"] = "Job title must be at least 2 characters"
	}
	return out
}
