package testing

//go:generate mockgen -package testing -destination mock_blockdevice.go -mock_names BlockDevice=MockBlockDevice github.com/dargueta/fatstream BlockDevice
