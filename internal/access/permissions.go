// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package access

// Permission groups are "action:scope" glob patterns. Levels compose these
// groups rather than inheriting, so the table reads top to bottom.

var playerPowers = []string{
	"read:*",
	"interact:*",
	"modify-own-property:own",
}

var programmerPowers = []string{
	"define-verb:own",
	"create-object:own",
	"destroy-object:own",
	"reparent:own",
}

var wizardPowers = []string{
	"**",
}

// DefaultRoles returns the default pattern set for each level.
func DefaultRoles() map[Level][]string {
	return map[Level][]string{
		LevelPlayer:     playerPowers,
		LevelProgrammer: compose(playerPowers, programmerPowers),
		LevelWizard:     compose(playerPowers, programmerPowers, wizardPowers),
	}
}

// compose merges multiple permission slices into one.
func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
