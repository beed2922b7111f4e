////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 weft foundation                                           //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package main

import "gitlab.com/weftnet/client/cmd"

func main() {
	cmd.Execute()
}
