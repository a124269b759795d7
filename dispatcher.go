package ftpd

// commandDescription is one entry of the static command table: the
// re-architected form of the source's "ftp_" + CMD dynamic lookup (DESIGN
// NOTES "Handler dispatch by command name" — a table, not reflection).
type commandDescription struct {
	Open            bool // allowed before login
	TransferRelated bool // may open a data connection; runs on its own goroutine
	SpecialAction   bool // runs even while a transfer is in progress (ABOR/STAT/QUIT)
	Fn              func(*Session, string) error
}

// specialAttentionCommands lets handleCommand recover commands sent as a
// Telnet IP/Synch out-of-band sequence whose suffix, not whose whole line,
// matches a known command — mirroring RFC 959's urgent-data convention.
var specialAttentionCommands = []string{"ABOR", "STAT", "QUIT"} //nolint:gochecknoglobals

// commandTable is the authoritative command reference of spec.md §4.7,
// shared across every Server instance since the FTP grammar doesn't vary
// between them.
var commandTable = map[string]*commandDescription{ //nolint:gochecknoglobals
	"USER": {Fn: (*Session).handleUSER, Open: true},
	"PASS": {Fn: (*Session).handlePASS, Open: true},
	"QUIT": {Fn: (*Session).handleQUIT, Open: true, SpecialAction: true},

	"PWD":  {Fn: (*Session).handlePWD},
	"XPWD": {Fn: (*Session).handlePWD},
	"CWD":  {Fn: (*Session).handleCWD},
	"XCWD": {Fn: (*Session).handleCWD},
	"CDUP": {Fn: (*Session).handleCDUP},
	"XCUP": {Fn: (*Session).handleCDUP},
	"MKD":  {Fn: (*Session).handleMKD},
	"XMKD": {Fn: (*Session).handleMKD},
	"RMD":  {Fn: (*Session).handleRMD},
	"XRMD": {Fn: (*Session).handleRMD},

	"TYPE": {Fn: (*Session).handleTYPE},
	"MODE": {Fn: (*Session).handleMODE},
	"STRU": {Fn: (*Session).handleSTRU},

	"PASV": {Fn: (*Session).handlePASV},
	"PORT": {Fn: (*Session).handlePORT},

	"REST": {Fn: (*Session).handleREST},
	"RETR": {Fn: (*Session).handleRETR, TransferRelated: true},
	"STOR": {Fn: (*Session).handleSTOR, TransferRelated: true},
	"APPE": {Fn: (*Session).handleAPPE, TransferRelated: true},
	"DELE": {Fn: (*Session).handleDELE},
	"RNFR": {Fn: (*Session).handleRNFR},
	"RNTO": {Fn: (*Session).handleRNTO},
	"SIZE": {Fn: (*Session).handleSIZE},
	"ALLO": {Fn: (*Session).handleALLO},
	"MDTM": {Fn: (*Session).handleMDTM},

	"LIST": {Fn: (*Session).handleLIST, TransferRelated: true},
	"NLST": {Fn: (*Session).handleNLST, TransferRelated: true},
	"MLSD": {Fn: (*Session).handleMLSD, TransferRelated: true},
	"MLST": {Fn: (*Session).handleMLST},

	"SYST": {Fn: (*Session).handleSYST},
	"STAT": {Fn: (*Session).handleSTAT, SpecialAction: true},
	"NOOP": {Fn: (*Session).handleNOOP},
	"FEAT": {Fn: (*Session).handleFEAT, Open: true},
	"OPTS": {Fn: (*Session).handleOPTS, Open: true},
	"CLNT": {Fn: (*Session).handleCLNT, Open: true},
	"ABOR": {Fn: (*Session).handleABOR, SpecialAction: true},
}
