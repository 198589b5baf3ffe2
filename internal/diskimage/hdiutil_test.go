package diskimage

import "testing"

const infoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>framework</key>
	<string>480.60.1</string>
	<key>images</key>
	<array>
		<dict>
			<key>image-path</key>
			<string>/tmp/encrypted-abc-Scratch.dmg</string>
			<key>system-entities</key>
			<array>
				<dict>
					<key>content-hint</key>
					<string>Apple_partition_scheme</string>
					<key>dev-entry</key>
					<string>/dev/disk4</string>
				</dict>
				<dict>
					<key>content-hint</key>
					<string>Apple_HFS</string>
					<key>dev-entry</key>
					<string>/dev/disk4s2</string>
					<key>mount-point</key>
					<string>/Volumes/Scratch</string>
				</dict>
			</array>
		</dict>
		<dict>
			<key>image-path</key>
			<string>/tmp/other.dmg</string>
			<key>system-entities</key>
			<array>
				<dict>
					<key>mount-point</key>
					<string>/Volumes/Other</string>
				</dict>
			</array>
		</dict>
	</array>
</dict>
</plist>
`

const attachFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>system-entities</key>
	<array>
		<dict>
			<key>content-hint</key>
			<string>Apple_partition_scheme</string>
			<key>dev-entry</key>
			<string>/dev/disk5</string>
		</dict>
		<dict>
			<key>content-hint</key>
			<string>Apple_HFS</string>
			<key>dev-entry</key>
			<string>/dev/disk5s2</string>
			<key>mount-point</key>
			<string>/Volumes/EncryptedScratchpad</string>
		</dict>
	</array>
</dict>
</plist>
`

func TestParseInfoOutput(t *testing.T) {
	mountPoints, err := parseInfoOutput([]byte(infoFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []string{"/Volumes/Scratch", "/Volumes/Other"}
	if len(mountPoints) != len(want) {
		t.Fatalf("got %v, want %v", mountPoints, want)
	}
	for i := range want {
		if mountPoints[i] != want[i] {
			t.Fatalf("mountPoints[%d] = %s, want %s", i, mountPoints[i], want[i])
		}
	}
}

func TestParseInfoOutputRejectsGarbage(t *testing.T) {
	if _, err := parseInfoOutput([]byte("not a plist")); err == nil {
		t.Fatal("expected error for malformed plist")
	}
}

func TestParseAttachOutput(t *testing.T) {
	mountPoint, err := parseAttachOutput([]byte(attachFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mountPoint != "/Volumes/EncryptedScratchpad" {
		t.Fatalf("mount point = %s", mountPoint)
	}
}

func TestParseAttachOutputWithoutMountableFilesystem(t *testing.T) {
	const bare = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>system-entities</key>
	<array>
		<dict>
			<key>dev-entry</key>
			<string>/dev/disk6</string>
		</dict>
	</array>
</dict>
</plist>
`
	if _, err := parseAttachOutput([]byte(bare)); err == nil {
		t.Fatal("expected error when no entity is mounted")
	}
}
