package dto

// ── 学期日历 DTO ──

// PeriodResponse 学期信息
type PeriodResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Holidays  []string `json:"holidays,omitempty"`
}

// BusinessDaysRequest 工作日推算请求
type BusinessDaysRequest struct {
	Base string `form:"base" binding:"required"`
	N    int    `form:"n"    binding:"min=0,max=366"`
}

// BusinessDaysResponse 工作日推算结果
type BusinessDaysResponse struct {
	PeriodID string `json:"period_id"`
	Base     string `json:"base"`
	N        int    `json:"n"`
	Result   string `json:"result"`
}
