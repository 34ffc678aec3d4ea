package service

import "math/rand"

// Avatar palette shared by users and groups.
var avatarColors = []string{
	"#f44336", "#e91e63", "#9c27b0", "#673ab7",
	"#3f51b5", "#2196f3", "#03a9f4", "#00bcd4",
	"#009688", "#4caf50", "#8bc34a", "#cddc39",
	"#ffc107", "#ff9800", "#ff5722", "#795548",
}

// RandomColor picks an avatar color for identities created without one.
func RandomColor() string {
	return avatarColors[rand.Intn(len(avatarColors))]
}
