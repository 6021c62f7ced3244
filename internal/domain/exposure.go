package domain

// ExposureEvent 家庭内暴露记录（contagious -> quarantined）
// 记录存在 <=> 两人中恰好一人具有传染性；同一无序对至多一条
type ExposureEvent struct {
	ContagiousPerson  string `json:"contagious_person" db:"contagious_person"`
	QuarantinedPerson string `json:"quarantined_person" db:"quarantined_person"`
	Exposed           bool   `json:"exposed" db:"exposed"` // 活跃记录恒为 true
	Ongoing           bool   `json:"ongoing" db:"ongoing"` // 暴露日期尚未确定
	Date              Date   `json:"date" db:"exposure_date"`
}

// NewOngoingExposure 新建"持续暴露"记录（日期未定）
func NewOngoingExposure(contagiousPerson, quarantinedPerson string) ExposureEvent {
	return ExposureEvent{
		ContagiousPerson:  contagiousPerson,
		QuarantinedPerson: quarantinedPerson,
		Exposed:           true,
		Ongoing:           true,
	}
}

// Key 无序对键
func (e ExposureEvent) Key() PairKey {
	return NewPairKey(e.ContagiousPerson, e.QuarantinedPerson)
}

// References 记录是否涉及该成员（任一方向）
func (e ExposureEvent) References(personID string) bool {
	return e.ContagiousPerson == personID || e.QuarantinedPerson == personID
}

// PairKey 无序成员对（Low <= High）
type PairKey struct {
	Low  string
	High string
}

// NewPairKey 构建无序对键，与参数顺序无关
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// ExposureChanges 协调结果：先删除 ToRemove，再插入 ToAdd
type ExposureChanges struct {
	ToAdd    []ExposureEvent `json:"to_add"`
	ToRemove []ExposureEvent `json:"to_remove"`
}

// IsEmpty 无任何变更
func (c ExposureChanges) IsEmpty() bool {
	return len(c.ToAdd) == 0 && len(c.ToRemove) == 0
}

// GuidanceResult 成员及其隔离结束日期；Date 为 nil 表示无可用指导
type GuidanceResult struct {
	Person *Person `json:"person"`
	Date   *Date   `json:"date"`
}
