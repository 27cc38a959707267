// Package weather provides the Hong Kong Observatory open-data client and
// the observatory warning-code constants.
package weather

// Hong Kong Observatory warning signal codes.
const (
	WarningFireYellow   = "WFIREY"
	WarningFireRed      = "WFIRER"
	WarningRainAmber    = "WRAINY"
	WarningRainRed      = "WRAINR"
	WarningRainBlack    = "WRAINB"
	WarningTyphoon1     = "TC1"
	WarningTyphoon3     = "TC3"
	WarningTyphoon8NE   = "TC8NE"
	WarningTyphoon8SE   = "TC8SE"
	WarningTyphoon8NW   = "TC8NW"
	WarningTyphoon8SW   = "TC8SW"
	WarningTyphoon9     = "TC9"
	WarningTyphoon10    = "TC10"
	WarningThunderstorm = "WTS"
	WarningFrost        = "WFROST"
	WarningHot          = "WHOT"
	WarningCold         = "WCOLD"
	WarningMonsoon      = "WMSGNL"
	WarningLandslip     = "WL"
	WarningTsunami      = "WTMW"
)
