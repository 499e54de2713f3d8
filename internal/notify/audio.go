package notify

import (
	"log"

	"vantrack-backend/internal/models"
)

// Tone is one note of a generated fallback sequence.
type Tone struct {
	FrequencyHz float64
	DurationMs  int
}

// Player is the device audio boundary. Implementations live with the
// client platform; tests use fakes.
type Player interface {
	PlayAsset(name string) error
	PlayTones(seq []Tone) error
}

// soundAssets maps each notification type to its sound file.
var soundAssets = map[models.NotificationType]string{
	models.NotificationTripStarted: "trip_started.mp3",
	models.NotificationVanArrived:  "van_arrived.mp3",
	models.NotificationEmbarked:    "embarked.mp3",
	models.NotificationAtSchool:    "at_school.mp3",
	models.NotificationDisembarked: "disembarked.mp3",
	models.NotificationProximity:   "proximity.mp3",
	models.NotificationRouteChange: "route_change.mp3",
	models.NotificationDelay:       "delay.mp3",
	models.NotificationTripUpdate:  "trip_update.mp3",
}

// toneSequences are the generated fallbacks, one distinct pitch/rhythm
// per type so every event stays audibly distinct without asset files.
var toneSequences = map[models.NotificationType][]Tone{
	models.NotificationTripStarted: {{523, 150}, {659, 150}, {784, 300}},
	models.NotificationVanArrived:  {{784, 200}, {784, 200}},
	models.NotificationEmbarked:    {{523, 120}, {659, 120}, {523, 120}},
	models.NotificationAtSchool:    {{659, 150}, {784, 150}, {1047, 400}},
	models.NotificationDisembarked: {{784, 150}, {659, 150}, {523, 300}},
	models.NotificationProximity:   {{880, 100}, {880, 100}, {880, 100}},
	models.NotificationRouteChange: {{440, 300}, {349, 300}},
	models.NotificationDelay:       {{330, 400}, {330, 400}},
	models.NotificationTripUpdate:  {{523, 200}},
}

// defaultTones plays for unrecognized types.
var defaultTones = []Tone{{440, 200}, {440, 200}}

// AudioNotifier plays a distinguishing sound per notification type on
// local receipt. Audio is best-effort: every failure is swallowed and the
// pipeline never blocks on playback.
type AudioNotifier struct {
	player Player
}

// NewAudioNotifier wraps a player. player may be nil (headless session).
func NewAudioNotifier(player Player) *AudioNotifier {
	return &AudioNotifier{player: player}
}

// OnNotification plays the sound for n. Suitable for registration as a
// dispatcher listener or a session receive hook.
func (a *AudioNotifier) OnNotification(n models.GuardianNotification) {
	if a.player == nil {
		return
	}

	if asset, ok := soundAssets[n.Type]; ok {
		if err := a.player.PlayAsset(asset); err == nil {
			return
		}
		// Missing asset or autoplay restriction: fall through to tones.
	}

	seq, ok := toneSequences[n.Type]
	if !ok {
		seq = defaultTones
	}
	if err := a.player.PlayTones(seq); err != nil {
		log.Printf("⚠️  Audio playback unavailable for %s: %v", n.Type, err)
	}
}
