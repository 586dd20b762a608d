package model

type LoginRequest struct {
	User   string `form:"user"`
	Passwd string `form:"passwd"`
	Server string `form:"server"`
}
