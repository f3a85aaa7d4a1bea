// Package model contains the persisted shapes passed between the domain and the stores.
package model

import "github.com/okian/fightlens/internal/domain/geom"

// ConfirmedDamageType marks a damage entry that the server attributed to a weapon hit.
const ConfirmedDamageType = 3

// ShotEvent is one shot fired during an encounter. Timestamps are Unix milliseconds.
type ShotEvent struct {
	ShotSend     int64  `json:"shotSend" bson:"shotSend"`
	ShotReceived *int64 `json:"shotReceived,omitempty" bson:"shotReceived"`

	Hit            bool `json:"hit" bson:"hit"`
	ShouldHit      bool `json:"shouldHit" bson:"shouldHit"`
	AimingOnTarget bool `json:"aimingOnTarget" bson:"aimingOnTarget"`
	TargetMoving   bool `json:"targetMoving" bson:"targetMoving"`

	WeaponHash        int64    `json:"weaponHash" bson:"weaponHash"`
	EntityStartHealth *float64 `json:"entityStartHealth,omitempty" bson:"entityStartHealth"`
	EntityEndHealth   *float64 `json:"entityEndHealth,omitempty" bson:"entityEndHealth"`

	// Camera rotation is in degrees: X is pitch, Z is yaw.
	CameraPosition geom.Vec3 `json:"cameraPosition" bson:"cameraPosition"`
	CameraRotation geom.Vec3 `json:"cameraRotation" bson:"cameraRotation"`

	ShotStart     geom.Vec3 `json:"shotStart" bson:"shotStart"`
	ShotDirection geom.Vec3 `json:"shotDirection" bson:"shotDirection"`
	RaycastHitPos geom.Vec3 `json:"raycastHitPos" bson:"raycastHitPos"`

	PlayerPos *geom.Vec3 `json:"playerPos,omitempty" bson:"playerPos"`
	TargetPos *geom.Vec3 `json:"targetPos,omitempty" bson:"targetPos"`

	BoneID          *int64     `json:"boneId,omitempty" bson:"boneId"`
	BoneName        *string    `json:"boneName,omitempty" bson:"boneName"`
	BoneCenter      *geom.Vec3 `json:"boneCenter,omitempty" bson:"boneCenter"`
	RealHitPosition *geom.Vec3 `json:"realHitPosition,omitempty" bson:"realHitPosition"`
}

// Range returns the shooter to target distance and whether both positions were recorded.
func (s *ShotEvent) Range() (float64, bool) {
	if s.PlayerPos == nil || s.TargetPos == nil {
		return 0, false
	}
	return geom.Distance(*s.PlayerPos, *s.TargetPos), true
}

// DamageEvent is one damage application reported for an encounter.
type DamageEvent struct {
	WeaponType   int64   `json:"weaponType" bson:"weaponType"`
	WeaponDamage float64 `json:"weaponDamage" bson:"weaponDamage"`
	DamageType   int     `json:"damageType" bson:"damageType"`
	Timestamp    int64   `json:"timestamp" bson:"timestamp"`
}

// Confirmed reports whether the entry counts towards server-confirmed hit statistics.
func (d DamageEvent) Confirmed() bool { return d.DamageType == ConfirmedDamageType }
