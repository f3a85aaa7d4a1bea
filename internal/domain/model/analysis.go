package model

// WeaponShots counts shots fired per weapon.
type WeaponShots struct {
	WeaponHash int64 `json:"weaponHash" bson:"weaponHash"`
	Shots      int   `json:"shots" bson:"shots"`
}

// BoneHits counts shots per target bone.
type BoneHits struct {
	Bone  string `json:"bone" bson:"bone"`
	Count int    `json:"count" bson:"count"`
}

// WeaponDamage sums confirmed damage per weapon.
type WeaponDamage struct {
	WeaponHash int64   `json:"weaponHash" bson:"weaponHash"`
	Amount     float64 `json:"amount" bson:"amount"`
	Count      int     `json:"count" bson:"count"`
	Average    float64 `json:"average" bson:"average"`
}

// AnalysisSummary is the statistical fold of one encounter. Every rate is
// zero when its denominator is zero.
type AnalysisSummary struct {
	DistThreshold      float64 `json:"distThreshold" bson:"distThreshold"`
	AngleThreshold     float64 `json:"angleThreshold" bson:"angleThreshold"`
	BoneCenterDistance float64 `json:"boneCenterDistance" bson:"boneCenterDistance"`
	AimAlignment       float64 `json:"aimAlignment" bson:"aimAlignment"`

	DistFlag               int `json:"distFlag" bson:"distFlag"`
	AngleFlag              int `json:"angleFlag" bson:"angleFlag"`
	BoneCenterDistanceFlag int `json:"boneCenterDistanceFlag" bson:"boneCenterDistanceFlag"`
	AimAlignmentFlag       int `json:"aimAlignmentFlag" bson:"aimAlignmentFlag"`

	MagicDamageFlag      int `json:"magicDamageFlag" bson:"magicDamageFlag"`
	MagicDamageSequences int `json:"magicDamageSequences" bson:"magicDamageSequences"`
	InvalidDamageFlag    int `json:"invalidDamageFlag" bson:"invalidDamageFlag"`

	ShotCount     int     `json:"shotCount" bson:"shotCount"`
	HitCount      int     `json:"hitCount" bson:"hitCount"`
	HitRate       float64 `json:"hitRate" bson:"hitRate"`
	ServerHitRate float64 `json:"serverHitRate" bson:"serverHitRate"`

	ShouldHitCount int `json:"shouldHitCount" bson:"shouldHitCount"`
	// ShouldHitButDidNot is hits minus should-hits; spread usually makes it negative.
	ShouldHitButDidNot int     `json:"shouldHitButDidNot" bson:"shouldHitButDidNot"`
	ShouldHitRate      float64 `json:"shouldHitRate" bson:"shouldHitRate"`

	AimingOnTargetCount int     `json:"aimingOnTargetCount" bson:"aimingOnTargetCount"`
	AimingOnTargetRate  float64 `json:"aimingOnTargetRate" bson:"aimingOnTargetRate"`
	// AimingOnTargetHitCount is hits minus aiming-on-target shots.
	AimingOnTargetHitCount int `json:"aimingOnTargetHitCount" bson:"aimingOnTargetHitCount"`

	TargetMovingCount    int     `json:"targetMovingCount" bson:"targetMovingCount"`
	TargetMovingRate     float64 `json:"targetMovingRate" bson:"targetMovingRate"`
	TargetMovingHitCount int     `json:"targetMovingHitCount" bson:"targetMovingHitCount"`
	TargetMovingHitRate  float64 `json:"targetMovingHitRate" bson:"targetMovingHitRate"`

	OtherTotalDamage        float64 `json:"otherTotalDamage" bson:"otherTotalDamage"`
	AverageOtherTotalDamage float64 `json:"averageOtherTotalDamage" bson:"averageOtherTotalDamage"`

	DetailedDamage []WeaponDamage `json:"detailedDamage" bson:"detailedDamage"`

	TotalDamage        float64 `json:"totalDamage" bson:"totalDamage"`
	AverageTotalDamage float64 `json:"averageTotalDamage" bson:"averageTotalDamage"`

	AverageDistance float64 `json:"averageDistance" bson:"averageDistance"`
	LowRange        int     `json:"lowRange" bson:"lowRange"`
	MidRange        int     `json:"midRange" bson:"midRange"`
	HighRange       int     `json:"highRange" bson:"highRange"`
	NoRange         int     `json:"noRange" bson:"noRange"`

	LowRangeHits     int     `json:"lowRangeHits" bson:"lowRangeHits"`
	MidRangeHits     int     `json:"midRangeHits" bson:"midRangeHits"`
	HighRangeHits    int     `json:"highRangeHits" bson:"highRangeHits"`
	LowRangeHitRate  float64 `json:"lowRangeHitRate" bson:"lowRangeHitRate"`
	MidRangeHitRate  float64 `json:"midRangeHitRate" bson:"midRangeHitRate"`
	HighRangeHitRate float64 `json:"highRangeHitRate" bson:"highRangeHitRate"`

	StationaryHitCount         int     `json:"stationaryHitCount" bson:"stationaryHitCount"`
	StationaryHitRate          float64 `json:"stationaryHitRate" bson:"stationaryHitRate"`
	MovementHitRateDrop        float64 `json:"movementHitRateDrop" bson:"movementHitRateDrop"`
	SuspiciousMovementTracking bool    `json:"suspiciousMovementTracking" bson:"suspiciousMovementTracking"`

	// DamageVariance holds the population standard deviation of confirmed damage.
	DamageVariance        float64 `json:"damageVariance" bson:"damageVariance"`
	DamageConsistencyFlag int     `json:"damageConsistencyFlag" bson:"damageConsistencyFlag"`

	Weapons  []WeaponShots `json:"weapons" bson:"weapons"`
	BoneHits []BoneHits    `json:"boneHits" bson:"boneHits"`
}

// Empty returns the summary stored for encounters too small to analyze.
func Empty() *AnalysisSummary {
	return &AnalysisSummary{
		DetailedDamage: []WeaponDamage{},
		Weapons:        []WeaponShots{},
		BoneHits:       []BoneHits{},
	}
}
