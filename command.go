package insteon

import "fmt"

// Command is the cmd1/cmd2 byte pair that appears in every standard
// and extended message.
type Command [2]byte

// SubCommand returns a copy of the command with cmd2 replaced, used
// for commands whose second byte selects a group or sub-function
// (e.g. CmdAssignToAllLinkGroup.SubCommand(int(group))).
func (c Command) SubCommand(cmd2 int) Command {
	return Command{c[0], byte(cmd2)}
}

func (c Command) String() string {
	return fmt.Sprintf("%02x.%02x", c[0], c[1])
}

// Cmd1 well known first-byte commands used throughout the core.
var (
	CmdLightOn          = Command{0x11, 0x00}
	CmdLightOnFast      = Command{0x12, 0x00}
	CmdLightOff         = Command{0x13, 0x00}
	CmdLightOffFast     = Command{0x14, 0x00}
	CmdLightBrighten    = Command{0x15, 0x00}
	CmdLightDim         = Command{0x16, 0x00}
	CmdLightStatusReq   = Command{0x19, 0x00}
	CmdLightStatusReq01 = Command{0x19, 0x01}
	CmdLightInstantChg  = Command{0x21, 0x00}
	CmdLightManualOn    = Command{0x23, 0x00}
	CmdLightManualOff   = Command{0x23, 0x01}

	CmdExtendedSet  = Command{0x2e, 0x00}
	CmdExtendedResp = Command{0x2e, 0x00}

	CmdEnterLinkingMode    = Command{0x09, 0x00}
	CmdEnterLinkingModeExt = Command{0x09, 0x00}
	CmdEnterUnlinkingMode  = Command{0x0a, 0x00}

	CmdIDRequest                  = Command{0x10, 0x00}
	CmdSetButtonPressedController = Command{0x02, 0x00}
	CmdSetButtonPressedResponder  = Command{0x03, 0x00}

	CmdPing                   = Command{0x0f, 0x00}
	CmdProductDataReq         = Command{0x03, 0x00}
	CmdProductDataResp        = Command{0x03, 0x01}
	CmdAssignToAllLinkGroup   = Command{0x01, 0x00}
	CmdDeleteFromAllLinkGroup = Command{0x02, 0x00}

	CmdReadWriteALDB   = Command{0x2f, 0x00}
	CmdAllLinkRecResp  = Command{0x2f, 0x00}

	CmdGetEngineVersion = Command{0x0d, 0x00}

	CmdSetAllLinkCommandAlias = Command{0x1f, 0x00}

	CmdEnterLinkingModeI1  = Command{0x09, 0x00}
)
