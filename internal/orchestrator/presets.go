package orchestrator

// Preset describes one analysis flow a client can request. Presets that
// are not yet differentiated route to the standard flow.
type Preset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MultiRole   bool   `json:"multi_role"`
	Enabled     bool   `json:"enabled"`
	Builtin     bool   `json:"is_builtin"`
}

// PresetStandard is the identifier every unknown or disabled preset
// silently resolves to.
const PresetStandard = "standard"

var builtinPresets = []Preset{
	{
		ID:          PresetStandard,
		Name:        "标准版",
		Description: "数据→指标→评分→LLM 标准流程",
		Enabled:     true,
		Builtin:     true,
	},
	{
		ID:          "multi_role",
		Name:        "多角色协作",
		Description: "六个固定分析角色顺序执行，首席策略师汇总结论",
		MultiRole:   true,
		Enabled:     true,
		Builtin:     true,
	},
	{
		ID:          "risk_first",
		Name:        "风控优先",
		Description: "在LLM前增加风控评估（占位，暂与标准版一致）",
		Enabled:     true,
		Builtin:     true,
	},
	{
		ID:          "multi_model_vote",
		Name:        "多模型共识",
		Description: "多模型投票（占位，暂与标准版一致）",
		Enabled:     true,
		Builtin:     true,
	},
}

// ListPresets returns the enabled presets.
func ListPresets() []Preset {
	var out []Preset
	for _, p := range builtinPresets {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// ResolvePreset maps a requested preset id to a known enabled preset,
// defaulting to the standard preset for unknown, absent, or disabled
// identifiers.
func ResolvePreset(presetID string) Preset {
	for _, p := range builtinPresets {
		if p.ID == presetID && p.Enabled {
			return p
		}
	}
	return builtinPresets[0]
}
